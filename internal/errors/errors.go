package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a memo error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"             // 404
	ErrMalformedStoredData ErrorCode = "MALFORMED_STORED_DATA" // 422
	ErrInternal            ErrorCode = "INTERNAL"              // 500
	ErrPersistenceFailure  ErrorCode = "PERSISTENCE_FAILURE"   // 507
)

// MemoError represents a structured error with code, status, and details.
type MemoError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Cause is the underlying error, if any. Not rendered to users.
	Cause error
}

// Error implements the error interface.
func (e *MemoError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MemoError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MemoError {
	return &MemoError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a note cannot be found.
func NewNotFound(id string) *MemoError {
	return &MemoError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("note not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewMalformedStoredData creates a 422 error for a backing slot that could not be parsed.
// The slot itself is left untouched.
func NewMalformedStoredData(key string, err error) *MemoError {
	return &MemoError{
		Code:    ErrMalformedStoredData,
		Status:  422,
		Message: fmt.Sprintf("stored notes in %q could not be read; starting empty", key),
		Details: map[string]any{"key": key},
		Cause:   err,
	}
}

// NewPersistenceFailure creates a 507 error for a rejected read or write of the backing slot.
func NewPersistenceFailure(op, key string, err error) *MemoError {
	msg := fmt.Sprintf("failed to %s notes", op)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &MemoError{
		Code:    ErrPersistenceFailure,
		Status:  507,
		Message: msg,
		Details: map[string]any{"op": op, "key": key},
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MemoError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MemoError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a MemoError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MemoError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// As returns the MemoError in err's chain, if any.
func As(err error) (*MemoError, bool) {
	var mErr *MemoError
	if stderrors.As(err, &mErr) {
		return mErr, true
	}
	return nil, false
}
