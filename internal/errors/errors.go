package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the central interface for every custom stockdash error.
// It lets the outer layers (handlers, workflow notices) read the category
// and suggested HTTP status without knowing the concrete type.
type AppError interface {
	Error() string    // standard error interface
	Category() string // e.g. "VALIDATION_ERROR", "NOT_FOUND", "STORE_FAILURE"
	HTTPStatus() int  // status suggested to the handler
	Unwrap() error    // underlying cause, if any
}

// --- Domain errors ---

// ValidationError reports bad input: missing fields, values that cannot be
// coerced, negative numbers, or a workflow event sent in the wrong state.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("validation error: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest }
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError creates a validation error.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError reports that no product exists under Code.
type NotFoundError struct {
	Code string
	Msg  string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("not found: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound }
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError creates the error raised by update and delete on a missing code.
func NewNotFoundError(code string) AppError {
	return &NotFoundError{Code: code, Msg: fmt.Sprintf("product with code '%s' does not exist", code)}
}

// AlreadyExistsError reports that add was called with a code already in the store.
type AlreadyExistsError struct {
	Code string
	Msg  string
}

func (e *AlreadyExistsError) Error() string    { return fmt.Sprintf("already exists: %s", e.Msg) }
func (e *AlreadyExistsError) Category() string { return "ALREADY_EXISTS" }
func (e *AlreadyExistsError) HTTPStatus() int  { return http.StatusConflict }
func (e *AlreadyExistsError) Unwrap() error    { return nil }

// NewAlreadyExistsError creates the error raised by add on a duplicate code.
func NewAlreadyExistsError(code string) AppError {
	return &AlreadyExistsError{Code: code, Msg: fmt.Sprintf("product with code '%s' already exists", code)}
}

// UnauthorizedError reports a missing or invalid credential.
type UnauthorizedError struct {
	Msg string
}

func (e *UnauthorizedError) Error() string    { return fmt.Sprintf("unauthorized: %s", e.Msg) }
func (e *UnauthorizedError) Category() string { return "UNAUTHORIZED" }
func (e *UnauthorizedError) HTTPStatus() int  { return http.StatusUnauthorized }
func (e *UnauthorizedError) Unwrap() error    { return nil }

// NewUnauthorizedError creates an authentication error.
func NewUnauthorizedError(msg string) AppError {
	return &UnauthorizedError{Msg: msg}
}

// ForbiddenError reports an authenticated caller without the required role.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string    { return fmt.Sprintf("forbidden: %s", e.Msg) }
func (e *ForbiddenError) Category() string { return "FORBIDDEN" }
func (e *ForbiddenError) HTTPStatus() int  { return http.StatusForbidden }
func (e *ForbiddenError) Unwrap() error    { return nil }

// NewForbiddenError creates an authorization error.
func NewForbiddenError(msg string) AppError {
	return &ForbiddenError{Msg: msg}
}

// --- Infrastructure errors (wrapping) ---

// StoreError wraps a failure of the document store (connectivity,
// permission, backend error). The cause is kept unmodified.
type StoreError struct {
	Msg string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store failure: %s", e.Msg)
	}
	return fmt.Sprintf("store failure: %s: %v", e.Msg, e.Err)
}
func (e *StoreError) Category() string { return "STORE_FAILURE" }
func (e *StoreError) HTTPStatus() int  { return http.StatusBadGateway }
func (e *StoreError) Unwrap() error    { return e.Err }

// NewStoreError wraps err as a store failure.
func NewStoreError(msg string, err error) AppError {
	return &StoreError{Msg: msg, Err: err}
}

// InternalError is an unexpected failure inside the service itself.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string    { return fmt.Sprintf("internal error: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError }
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError creates a server error.
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// --- Helpers ---

// IsNotFound reports whether err carries a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

// IsAlreadyExists reports whether err carries an AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var ae *AlreadyExistsError
	return stderrors.As(err, &ae)
}

// MapToHTTPStatus translates err into the status code, category and message
// written by the handlers. Untyped errors become a generic 500.
func MapToHTTPStatus(err error) (int, string, string) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "an unexpected error occurred"
}
