package external

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedtypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/sony/gobreaker/v2"

	"postscheduler/internal/types"
)

// ErrScheduleExists is wrapped by CreateSchedule when a schedule with the
// same name already exists in the group.
var ErrScheduleExists = errors.New("schedule already exists")

// ErrScheduleNotFound is wrapped by DeleteSchedule when there is nothing to delete.
var ErrScheduleNotFound = errors.New("schedule not found")

// SchedulerAPI is the subset of the EventBridge Scheduler client used here.
type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, params *scheduler.CreateScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.CreateScheduleOutput, error)
	DeleteSchedule(ctx context.Context, params *scheduler.DeleteScheduleInput, optFns ...func(*scheduler.Options)) (*scheduler.DeleteScheduleOutput, error)
}

// ScheduleRequest describes a one-time timer.
type ScheduleRequest struct {
	Name        string
	GroupName   string
	Expression  string
	Description string
	TargetARN   string
	RoleARN     string
	// Input is delivered verbatim to the target when the timer fires.
	Input string
}

// SchedulerClient creates and deletes one-time schedules. Fired schedules
// delete themselves.
type SchedulerClient struct {
	api     SchedulerAPI
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewSchedulerClient wraps api with the default breaker.
func NewSchedulerClient(api SchedulerAPI) *SchedulerClient {
	return &SchedulerClient{
		api:     api,
		breaker: newBreaker[struct{}](DefaultBreakerSettings("eventbridge-scheduler")),
	}
}

// CreateSchedule creates req as a one-shot schedule with no flexible window.
// The returned error wraps ErrScheduleExists when the name is taken.
func (c *SchedulerClient) CreateSchedule(ctx context.Context, req ScheduleRequest) error {
	input := &scheduler.CreateScheduleInput{
		Name:                  aws.String(req.Name),
		GroupName:             aws.String(req.GroupName),
		ScheduleExpression:    aws.String(req.Expression),
		ActionAfterCompletion: schedtypes.ActionAfterCompletionDelete,
		FlexibleTimeWindow: &schedtypes.FlexibleTimeWindow{
			Mode: schedtypes.FlexibleTimeWindowModeOff,
		},
		Target: &schedtypes.Target{
			Arn:     aws.String(req.TargetARN),
			RoleArn: aws.String(req.RoleARN),
			Input:   aws.String(req.Input),
		},
	}
	if req.Description != "" {
		input.Description = aws.String(req.Description)
	}

	_, err := c.breaker.Execute(func() (struct{}, error) {
		_, err := c.api.CreateSchedule(ctx, input)
		return struct{}{}, err
	})
	if err == nil {
		return nil
	}

	var conflict *schedtypes.ConflictException
	if errors.As(err, &conflict) || apiErrorCode(err) == "ConflictException" {
		return types.NewAppErrorWithDetails(types.ErrCodeConflictScheduleExists,
			fmt.Sprintf("schedule %s already exists", req.Name),
			fmt.Errorf("%w: %w", ErrScheduleExists, err),
			map[string]any{"schedule_name": req.Name, "group_name": req.GroupName})
	}
	return mapUpstreamError(types.ErrCodeUpstreamScheduler,
		fmt.Sprintf("failed to create schedule %s", req.Name), err)
}

// DeleteSchedule removes a pending schedule from group.
func (c *SchedulerClient) DeleteSchedule(ctx context.Context, group, name string) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		_, err := c.api.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
			Name:      aws.String(name),
			GroupName: aws.String(group),
		})
		return struct{}{}, err
	})
	if err == nil {
		return nil
	}

	var notFound *schedtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s in group %s", ErrScheduleNotFound, name, group)
	}
	return mapUpstreamError(types.ErrCodeUpstreamScheduler,
		fmt.Sprintf("failed to delete schedule %s", name), err)
}
