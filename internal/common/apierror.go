package common

import (
	"errors"
	"net/http"
)

// Kind classifies an APIError and determines its HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
)

// StatusCode maps the kind to the HTTP status written to clients.
func (k Kind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// DefaultInternalMessage is the only message clients see for internal failures.
const DefaultInternalMessage = "Something went wrong"

// APIError is a domain error that carries everything the HTTP layer needs to
// build a failure envelope. Err holds the underlying cause for logging and is
// never serialized.
type APIError struct {
	Kind    Kind
	Message string
	Errors  []string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status for the error.
func (e *APIError) StatusCode() int { return e.Kind.StatusCode() }

func Validation(msg string, errs ...string) *APIError {
	return &APIError{Kind: KindValidation, Message: msg, Errors: errs}
}

func Unauthorized(msg string, cause error) *APIError {
	return &APIError{Kind: KindUnauthorized, Message: msg, Err: cause}
}

func NotFound(msg string) *APIError {
	return &APIError{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *APIError {
	return &APIError{Kind: KindConflict, Message: msg}
}

func Internal(cause error) *APIError {
	return &APIError{Kind: KindInternal, Message: DefaultInternalMessage, Err: cause}
}

// AsAPIError returns err as an *APIError. Anything that is not already an
// APIError becomes KindInternal so raw causes never reach a client.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}

// IsKind reports whether err is an APIError of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == k
}
