package session

import "errors"

var (
	// ErrInvalidCredentials is deliberately undifferentiated: an unknown
	// email and a wrong password produce the same failure.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrDuplicateUser         = errors.New("user already exists")
	ErrInvalidOrRevokedToken = errors.New("invalid or revoked refresh token")
	ErrUserNotFound          = errors.New("user not found")
)
