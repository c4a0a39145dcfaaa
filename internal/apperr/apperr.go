package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "validation_error"
	CodeNotFound          Code = "not_found"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeUnauthorized      Code = "unauthorized"
	CodeConflict          Code = "conflict"
	CodeStore             Code = "store_error"
	CodeInvariant         Code = "invariant_violation"
)

// Error carries a stable machine code alongside a human-readable message.
// Handlers map the code to an HTTP status at the edge; services never
// import net/http.
type Error struct {
	Code    Code
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

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(message string) *Error { return New(CodeValidation, message) }

func NotFound(message string) *Error { return New(CodeNotFound, message) }

func InsufficientFunds(message string) *Error { return New(CodeInsufficientFunds, message) }

func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }

func Conflict(message string) *Error { return New(CodeConflict, message) }

// Store wraps an I/O or timeout failure from the persistence layer. Callers
// outside the core may retry these for idempotent operations.
func Store(err error) *Error {
	return &Error{Code: CodeStore, Message: "store error", Err: err}
}

// Invariant marks a state the locking discipline should make unreachable,
// e.g. a stored balance that disagrees with the completed ledger sum.
func Invariant(message string) *Error { return New(CodeInvariant, message) }

// CodeOf extracts the taxonomy code, defaulting to store error for plain
// errors bubbling up from drivers or context cancellation.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStore
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientFunds:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeInvariant:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
