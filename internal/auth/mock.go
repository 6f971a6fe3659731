package auth

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/taskstream/taskstream/internal/types"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) ValidateCredential(ctx context.Context, token string) (types.User, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(types.User), args.Error(1)
}
