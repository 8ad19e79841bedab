package auth

import "errors"

// Domain errors for token handling.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrNoSecret     = errors.New("signing secret is empty")
	ErrNoSubject    = errors.New("subject is required")
)
