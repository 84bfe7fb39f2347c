// Package apperrors provides the error taxonomy shared by the game engine and its transports.
package apperrors

import "net/http"

// Code is a machine-readable error kind. Values are stable and part of the API.
type Code string

const (
	// CodeUnknown represents an error that did not originate in the domain.
	CodeUnknown Code = "UNKNOWN"

	CodeValidation   Code = "VALIDATION"
	CodeConflict     Code = "CONFLICT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeInvalidState Code = "INVALID_STATE"
	CodeExhausted    Code = "EXHAUSTED"

	// Redemption
	CodeAlreadyUsed Code = "ALREADY_USED"
	CodeExpired     Code = "EXPIRED"

	// CodeStorage marks a persistence failure. Nothing was committed, so the call may be retried.
	CodeStorage Code = "STORAGE"

	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// HTTPStatus maps a code to the HTTP status used by the transports.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState, CodeExhausted, CodeAlreadyUsed:
		return http.StatusConflict
	case CodeExpired:
		return http.StatusGone
	case CodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely repeat the same call.
func (c Code) Retryable() bool {
	return c == CodeStorage
}
