package domain

import "errors"

var (
	// ErrUnauthorized indicates the upstream API rejected the session
	// credentials. Handlers map it to 401 so clients know to re-login.
	ErrUnauthorized = errors.New("upstream rejected credentials")

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
