package auth

import "errors"

var (
	ErrNotFound       = errors.New("auth: not found")
	ErrDuplicateEmail = errors.New("auth: email already registered")
	ErrInvalidInput   = errors.New("auth: invalid input")
	ErrUnauthorized   = errors.New("auth: unauthorized")

	// ErrInvalidToken covers bad signature, malformed structure and expiry.
	// The reasons stay distinguishable in logs but collapse to a single
	// unauthenticated outcome for callers.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenRevoked marks a token that verified fine but was logged out.
	ErrTokenRevoked = errors.New("auth: token revoked")

	ErrNoChallenge  = errors.New("auth: no reset code requested")
	ErrCodeExpired  = errors.New("auth: reset code expired")
	ErrCodeMismatch = errors.New("auth: invalid reset code")

	// ErrMailDelivery signals that the reset code could not be handed to the
	// mail collaborator. Callers must not leak this to the requester.
	ErrMailDelivery = errors.New("auth: reset code delivery failed")
)
