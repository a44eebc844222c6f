package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes surfaced to clients.
const (
	CodeValidation    = "VALIDATION_FAILED"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeAccessDenied  = "ACCESS_DENIED"
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyClosed = "ALREADY_CLOSED"
	CodeConflict      = "CONFLICT"
	CodeTransient     = "TRANSIENT"
	CodeInternal      = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may safely retry the operation.
func (e *DomainError) Retryable() bool {
	return e.Code == CodeTransient
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

// NewFieldError is a validation error carrying a single field reason.
func NewFieldError(field, reason string) error {
	return NewValidationError(fmt.Sprintf("%s: %s", field, reason), map[string]any{field: reason})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewAccessDenied never says whether the resource exists.
func NewAccessDenied() error {
	return NewDomainError(CodeAccessDenied, "access denied", http.StatusForbidden, nil)
}

func NewAlreadyClosed(details map[string]any) error {
	return NewDomainError(CodeAlreadyClosed, "chat is already closed", http.StatusConflict, details)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewTransient(err error) error {
	return &DomainError{
		Code:       CodeTransient,
		Message:    "storage temporarily unavailable, retry later",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) || IsMalformedInput(err) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	if IsUnencodableText(err) {
		return NewValidationError("text contains unsupported characters", nil).(*DomainError)
	}
	if IsTransient(err) {
		return NewTransient(err).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts err to a DomainError, keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsTransient reports store timeouts and connectivity failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected, query_canceled (statement_timeout)
		switch pgErr.Code {
		case "40001", "40P01", "57014":
			return true
		}
	}
	return false
}

// IsMalformedInput reports a value Postgres could not parse for its column type,
// such as an id that is not a UUID.
func IsMalformedInput(err error) bool {
	return hasPgCode(err, "22P02")
}

// IsUnencodableText reports text Postgres cannot store, such as NUL bytes or
// invalid UTF-8.
func IsUnencodableText(err error) bool {
	return hasPgCode(err, "22021")
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// HasCode reports whether err carries the given DomainError code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
