package apierror

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the HTTP boundary.
type Kind string

const (
	KindUnauthenticated         Kind = "unauthenticated"
	KindForbidden               Kind = "forbidden"
	KindInvalidCredentialFormat Kind = "invalid_credential_format"
	KindRateLimited             Kind = "rate_limited"
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindDependencyUnavailable   Kind = "dependency_unavailable"
	KindValidation              Kind = "validation"
	KindInternal                Kind = "internal"
)

// Error is a classified service error. Message is safe to show to clients;
// Err keeps the internal cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause attaches an internal cause to e and returns it.
func (e *Error) WithCause(cause error) *Error {
	e.Err = cause
	return e
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func Unauthenticated(msg string) *Error { return newErr(KindUnauthenticated, msg, nil) }

func Forbidden(msg string) *Error { return newErr(KindForbidden, msg, nil) }

func InvalidCredentialFormat(msg string) *Error {
	return newErr(KindInvalidCredentialFormat, msg, nil)
}

func RateLimited(msg string) *Error { return newErr(KindRateLimited, msg, nil) }

func NotFound(msg string) *Error { return newErr(KindNotFound, msg, nil) }

func Conflict(msg string) *Error { return newErr(KindConflict, msg, nil) }

func Validation(msg string) *Error { return newErr(KindValidation, msg, nil) }

// Unavailable wraps a credential-store or state-store failure.
func Unavailable(msg string, cause error) *Error {
	return newErr(KindDependencyUnavailable, msg, cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps a Kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidCredentialFormat:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Envelope converts a classified error into the response body. Internal
// errors get a generic message.
func Envelope(err error) *APIError {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return WithCode(e.Kind, e.Message)
	}
	return WithCode(KindInternal, "internal server error")
}
