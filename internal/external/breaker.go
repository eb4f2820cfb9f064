// Package external provides the anti-corruption layer between the pipeline's
// domain logic and the AWS services it drives: EventBridge Scheduler, Step
// Functions and the EventBridge bus. SDK error shapes are translated into
// types.AppError codes here so callers never inspect vendor errors.
package external

import (
	"errors"
	"time"

	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker/v2"

	"postscheduler/internal/types"
)

// BreakerSettings configures the circuit breaker guarding a single upstream.
type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerSettings returns the thresholds used for AWS control-plane calls.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// newBreaker builds a breaker that trips after more than ConsecutiveFailures
// upstream faults. Client-side rejections (validation, conflicts) do not count.
func newBreaker[T any](s BreakerSettings) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientFault(err)
		},
	})
}

// isClientFault reports whether err is an API error the caller caused.
func isClientFault(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorFault() == smithy.FaultClient
	}
	return false
}

// isBreakerOpen reports whether err came from an open or saturated breaker.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// apiErrorCode returns the service error code of err, or "" if err is not an
// API error.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// mapUpstreamError translates an SDK failure into an AppError with code.
func mapUpstreamError(code types.ErrorCode, message string, err error) *types.AppError {
	if isBreakerOpen(err) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream service unavailable", err)
	}
	switch apiErrorCode(err) {
	case "ThrottlingException", "TooManyRequestsException":
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, message, err)
	}
	return types.NewAppError(code, message, err)
}
