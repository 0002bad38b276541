package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Hookah error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"      // 401
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrAlreadyExists    ErrorCode = "ALREADY_EXISTS"    // 409
	ErrRateLimited      ErrorCode = "RATE_LIMITED"      // 429
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED" // 500
	ErrStoreFailure     ErrorCode = "STORE_FAILURE"     // 500
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrParseFailed      ErrorCode = "PARSE_FAILED"      // 502, never leaves the generation client unwrapped
)

// HookahError represents a structured error with code, status, and details.
// Message is safe to show to clients; Cause is for server-side logs only.
type HookahError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *HookahError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *HookahError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *HookahError {
	return &HookahError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewUnauthorized creates a 401 error for a missing or invalid credential.
func NewUnauthorized(msg string, cause error) *HookahError {
	return &HookahError{
		Code:    ErrUnauthorized,
		Status:  401,
		Message: msg,
		Cause:   cause,
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(identifier string) *HookahError {
	return &HookahError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewAlreadyExists creates a 409 error for a duplicate suggestion hash.
func NewAlreadyExists(hash string) *HookahError {
	return &HookahError{
		Code:    ErrAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("suggestion record already exists: %s", hash),
		Details: map[string]any{"hash": hash},
	}
}

// NewRateLimited creates a 429 error. retryAfter is the window length in seconds.
func NewRateLimited(retryAfter int) *HookahError {
	return &HookahError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: "Rate limit exceeded. Please try again in a minute.",
		Details: map[string]any{"retry_after_seconds": retryAfter},
	}
}

// NewParseFailed creates an error for generator output that could not be parsed or validated.
func NewParseFailed(reason string) *HookahError {
	return &HookahError{
		Code:    ErrParseFailed,
		Status:  502,
		Message: reason,
	}
}

// NewGenerationFailed creates a 500 error once all generation attempts are spent.
func NewGenerationFailed(attempts int, cause error) *HookahError {
	return &HookahError{
		Code:    ErrGenerationFailed,
		Status:  500,
		Message: "Failed to generate suggestions after multiple attempts",
		Details: map[string]any{"attempts": attempts},
		Cause:   cause,
	}
}

// NewStoreFailure creates a 500 error for document store failures.
func NewStoreFailure(op string, cause error) *HookahError {
	return &HookahError{
		Code:    ErrStoreFailure,
		Status:  500,
		Message: fmt.Sprintf("store failure during %s", op),
		Cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *HookahError {
	return &HookahError{
		Code:    ErrInternal,
		Status:  500,
		Message: "internal error",
		Cause:   err,
	}
}

// Is checks if an error is (or wraps) a HookahError with the given code.
func Is(err error, code ErrorCode) bool {
	var hErr *HookahError
	if stderrors.As(err, &hErr) {
		return hErr.Code == code
	}
	return false
}

// As returns the HookahError inside err, or an internal error wrapping err.
func As(err error) *HookahError {
	var hErr *HookahError
	if stderrors.As(err, &hErr) {
		return hErr
	}
	return NewInternal(err)
}

// Exposed reports whether the error's details may be shown to clients.
func (e *HookahError) Exposed() bool {
	return e.Code != ErrInternal && e.Code != ErrStoreFailure
}
