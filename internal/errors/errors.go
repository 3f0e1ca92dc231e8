package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Brief error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrUpstream       ErrorCode = "UPSTREAM"        // 502
)

// BriefError represents a structured error with code, status, and details.
type BriefError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *BriefError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *BriefError {
	return &BriefError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a record cannot be found.
// kind names the record type ("case", "result").
func NewNotFound(kind, identifier string) *BriefError {
	return &BriefError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewCaseBusy creates a 409 error when a case already has a run in flight.
func NewCaseBusy(caseID string) *BriefError {
	return &BriefError{
		Code:    ErrConflict,
		Status:  409,
		Message: fmt.Sprintf("case %s is already processing", caseID),
		Details: map[string]any{"case_id": caseID},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *BriefError {
	return &BriefError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewCancelled creates a 499 error when an operation was cancelled by its caller.
func NewCancelled(operation string) *BriefError {
	return &BriefError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewUpstream creates a 502 error for failures of an external provider.
func NewUpstream(provider string, err error) *BriefError {
	msg := "upstream error"
	if err != nil {
		msg = err.Error()
	}
	return &BriefError{
		Code:    ErrUpstream,
		Status:  502,
		Message: msg,
		Details: map[string]any{"provider": provider},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *BriefError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BriefError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a BriefError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BriefError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// upstream is implemented by errors from external providers.
type upstream interface {
	UpstreamProvider() string
}

// From maps any error onto a BriefError for an outer surface.
// Cancellation becomes CANCELLED, provider failures UPSTREAM, anything
// else that is not already a BriefError INTERNAL.
func From(err error) *BriefError {
	if err == nil {
		return nil
	}
	var bErr *BriefError
	if stderrors.As(err, &bErr) {
		return bErr
	}
	var up upstream
	if stderrors.As(err, &up) {
		return NewUpstream(up.UpstreamProvider(), err)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewCancelled("request")
	}
	return NewInternal(err)
}
