package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers use these instead of hardcoded strings.
const (
	// Validation: the input will never become valid on redelivery.
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEvent    ErrorCode = "validation_invalid_event"
	ErrCodeValidationInvalidPost     ErrorCode = "validation_invalid_post"
	ErrCodeValidationMissingSchedule ErrorCode = "validation_missing_schedule"
	ErrCodeValidationPastSchedule    ErrorCode = "validation_schedule_in_past"

	// Conflict: idempotent collisions on deterministic keys.
	ErrCodeConflictScheduleExists ErrorCode = "conflict_schedule_exists"
	ErrCodeConflictPostExists     ErrorCode = "conflict_post_exists"

	// Internal
	ErrCodeInternalConfigMissing ErrorCode = "internal_config_missing"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"

	// Upstream: a collaborator rejected or could not serve the call.
	ErrCodeUpstreamScheduler   ErrorCode = "upstream_scheduler_unavailable"
	ErrCodeUpstreamWorkflow    ErrorCode = "upstream_workflow_unavailable"
	ErrCodeUpstreamEventBus    ErrorCode = "upstream_event_bus_unavailable"
	ErrCodeUpstreamStore       ErrorCode = "upstream_store_unavailable"
	ErrCodeUpstreamQueue       ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// Retryable reports whether a failure with this code may succeed when the
// invoking event source redelivers the same input. Only upstream failures
// qualify; validation and configuration problems need manual intervention.
func (c ErrorCode) Retryable() bool {
	return strings.HasPrefix(string(c), "upstream_")
}

// AppError is the standard application error type used throughout the pipeline.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether redelivery of the triggering event may succeed.
func (e *AppError) Retryable() bool {
	return e.Code.Retryable()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf extracts the ErrorCode from the first AppError in err's chain.
// Returns the empty code when no AppError is present.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
