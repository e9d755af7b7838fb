// Package common defines shared constants, sentinel errors and the API error
// type used across the accounthub server. Callers should use errors.Is and
// errors.As to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Auth errors. ErrTokenExpired wraps ErrInvalidToken so callers that only
	// care about validity can match the latter.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = &tokenError{msg: "token expired"}
)

type tokenError struct {
	msg string
}

func (e *tokenError) Error() string { return e.msg }

func (e *tokenError) Unwrap() error { return ErrInvalidToken }
