// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrTimeout           = errors.New("operation timed out")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrNotMockAccount    = errors.New("demo mode is only available without a connected broker")
	ErrTradingLocked     = errors.New("trading is locked")
	ErrUnknownRiskStatus = errors.New("unknown risk status")
	ErrEmptyReport       = errors.New("report is empty")
	ErrInputValidation   = errors.New("input validation failed")
	ErrNoDraft           = errors.New("no saved draft")
)

// APIError represents a failed call to the remote risk service.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error [%s %s] %d: %s: %v", e.Method, e.Path, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("api error [%s %s] %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError.
func NewAPIError(method, path string, statusCode int, message string, err error) *APIError {
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// SubmissionError is a recoverable failure of a user-initiated submission
// (feedback, report download). The draft that produced it is kept.
type SubmissionError struct {
	Kind    string
	DraftID string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.DraftID != "" {
		return fmt.Sprintf("%s submission failed (draft %s kept): %v", e.Kind, e.DraftID, e.Err)
	}
	return fmt.Sprintf("%s submission failed: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewSubmissionError creates a new SubmissionError.
func NewSubmissionError(kind, draftID string, err error) *SubmissionError {
	return &SubmissionError{
		Kind:    kind,
		DraftID: draftID,
		Err:     err,
	}
}

// IsTransport reports whether err is a transport-level failure: the service
// was unreachable, timed out or answered with a server error.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrTimeout) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 0 || apiErr.StatusCode >= 500
	}
	return false
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
