package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationMissingSchedule,
		Message: "post p1 is marked for scheduling but has no schedule",
	}
	assert.Equal(t, "validation_missing_schedule: post p1 is marked for scheduling but has no schedule", appErr.Error())

	wrapped := NewAppError(ErrCodeUpstreamScheduler, "create schedule failed", errors.New("throttled"))
	assert.Equal(t, "upstream_scheduler_unavailable: create schedule failed: throttled", wrapped.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	appErr := NewAppError(ErrCodeUpstreamWorkflow, "start execution failed", underlying)

	assert.Same(t, underlying, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, underlying))
	assert.Nil(t, NewAppError(ErrCodeValidationInvalidPost, "bad", nil).Unwrap())
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeValidationPastSchedule, "in the past", nil)
	wrapped := fmt.Errorf("scheduler: %w", appErr)

	var target *AppError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrCodeValidationPastSchedule, target.Code)
	assert.Equal(t, ErrCodeValidationPastSchedule, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestErrorCodeRetryable(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrCodeUpstreamScheduler, true},
		{ErrCodeUpstreamWorkflow, true},
		{ErrCodeUpstreamEventBus, true},
		{ErrCodeUpstreamRateLimited, true},
		{ErrCodeValidationPastSchedule, false},
		{ErrCodeValidationMissingSchedule, false},
		{ErrCodeInternalConfigMissing, false},
		{ErrCodeConflictScheduleExists, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Retryable())
			assert.Equal(t, tt.want, NewAppError(tt.code, "x", nil).Retryable())
		})
	}
}

func TestAppErrorWithDetailsDoesNotMutate(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeValidationInvalidPost, "bad post", nil, map[string]any{"post_id": "p1"})
	enriched := orig.WithDetails(map[string]any{"field": "schedule.month"})

	assert.Len(t, orig.Details, 1)
	assert.Equal(t, "p1", enriched.Details["post_id"])
	assert.Equal(t, "schedule.month", enriched.Details["field"])
}
