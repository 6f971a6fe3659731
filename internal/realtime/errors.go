package realtime

import "errors"

var (
	// ErrAuthenticationRejected means the credential was invalid or
	// expired. The connection is refused and no session is created.
	ErrAuthenticationRejected = errors.New("authentication rejected")
	// ErrNotAuthorizedForRoom means a join was attempted without
	// workspace membership. The request is denied, the session survives.
	ErrNotAuthorizedForRoom = errors.New("not authorized for room")
	// ErrSessionNotFound means an operation referenced a stale or
	// unknown session id. Callers treat it as a no-op, never fatal.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDeliveryDropped means a session's send queue overflowed and an
	// event was discarded for that session only.
	ErrDeliveryDropped = errors.New("delivery dropped")
)
