// Package auth validates credential tokens issued by the external
// authentication service. Token issuance (login, registration) happens
// outside this subsystem; only verification lives here.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/taskstream/taskstream/internal/types"
)

const (
	userIdClaim   = "user-id"
	usernameClaim = "username"
	fullNameClaim = "full_name"
	expClaim      = "exp"
)

type Authenticator interface {
	// ValidateCredential verifies a credential token and returns the
	// authenticated user. The context bounds the handshake.
	ValidateCredential(ctx context.Context, token string) (types.User, error)
}

type JWTAuthenticator struct {
	signingKey []byte
}

func NewJWTAuthenticator(signingKey []byte) *JWTAuthenticator {
	return &JWTAuthenticator{signingKey: signingKey}
}

func (a *JWTAuthenticator) ValidateCredential(ctx context.Context, tokenString string) (types.User, error) {
	if err := ctx.Err(); err != nil {
		return types.User{}, err
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return types.User{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return types.User{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.User{}, fmt.Errorf("invalid token claims")
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok || userId <= 0 {
		return types.User{}, fmt.Errorf("invalid user id claim")
	}

	user := types.User{Id: int(userId)}
	if username, ok := claims[usernameClaim].(string); ok {
		user.Username = username
	}
	if fullName, ok := claims[fullNameClaim].(string); ok {
		user.FullName = fullName
	}

	return user, nil
}

// CreateToken signs a credential token for a user. Used by tests and
// operational tooling; production tokens come from the auth service.
func CreateToken(signingKey []byte, user types.User, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim:   user.Id,
		usernameClaim: user.Username,
		fullNameClaim: user.FullName,
		expClaim:      time.Now().Add(exp).Unix(),
	})

	return token.SignedString(signingKey)
}
