package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"postscheduler/internal/external"
	"postscheduler/internal/posts"
	"postscheduler/internal/telemetry"
	"postscheduler/internal/types"
)

const component = "scheduler"

// TimerService registers one-time timers. CreateSchedule returns an error
// wrapping external.ErrScheduleExists when the name is already taken.
type TimerService interface {
	CreateSchedule(ctx context.Context, req external.ScheduleRequest) error
}

// Config names the pre-provisioned resources every timer references.
type Config struct {
	GroupName string
	RoleARN   string
	TargetARN string
}

func (c Config) missing() []string {
	var out []string
	if c.GroupName == "" {
		out = append(out, "SCHEDULE_GROUP_NAME")
	}
	if c.RoleARN == "" {
		out = append(out, "SCHEDULE_ROLE_ARN")
	}
	if c.TargetARN == "" {
		out = append(out, "SEND_POST_SERVICE_ARN")
	}
	return out
}

// Result describes what HandleDetail did with one change event.
type Result struct {
	PostID     string
	Name       string
	Expression string
	FireAt     time.Time
	// Skipped is set for posts not marked for scheduling.
	Skipped bool
	// AlreadyScheduled is set when the timer existed from an earlier delivery.
	AlreadyScheduled bool
}

// Engine creates a delivery timer for each newly created post.
type Engine struct {
	cfg     Config
	timers  TimerService
	metrics telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time
	loc     *time.Location
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone schedule fields are interpreted in. The
// default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine wires an Engine. A nil metrics sink disables metrics.
func NewEngine(cfg Config, timers TimerService, metrics telemetry.Metrics, logger *slog.Logger, opts ...Option) *Engine {
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	e := &Engine{
		cfg:     cfg,
		timers:  timers,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleEvent is the Lambda entry point for SchedulePostCreated events.
// Validation and Timer Service failures are returned so the bus records the
// failed delivery; the engine itself never retries.
func (e *Engine) HandleEvent(ctx context.Context, event events.EventBridgeEvent) error {
	log := types.InvocationLogger(ctx, e.logger)
	log.InfoContext(ctx, "processing change event",
		"event_id", event.ID,
		"source", event.Source,
		"detail_type", event.DetailType,
	)

	res, err := e.HandleDetail(ctx, event.Detail)
	if err != nil {
		log.ErrorContext(ctx, "failed to schedule post",
			"error", err,
			"code", types.CodeOf(err),
			"retryable", types.CodeOf(err).Retryable(),
		)
		return err
	}

	if !res.Skipped {
		log.InfoContext(ctx, "post scheduled",
			"post_id", res.PostID,
			"schedule_name", res.Name,
			"fire_expression", res.Expression,
			"already_scheduled", res.AlreadyScheduled,
		)
	}
	return nil
}

// HandleDetail schedules delivery of the post carried by detail, an object
// of the form {"posts": <attribute-typed post image>, ...}.
func (e *Engine) HandleDetail(ctx context.Context, detail json.RawMessage) (*Result, error) {
	if missing := e.cfg.missing(); len(missing) > 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalConfigMissing,
			"scheduler is not configured", nil, map[string]any{"missing": missing})
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(detail, &fields); err != nil || fields == nil {
		return nil, e.reject(ctx, types.NewAppError(types.ErrCodeValidationInvalidEvent,
			"event detail is not a JSON object", err))
	}

	post, err := posts.DecodeImage(fields["posts"])
	if err != nil {
		return nil, e.reject(ctx, err)
	}

	if !post.SchedulePost {
		types.InvocationLogger(ctx, e.logger).InfoContext(ctx, "post is not marked for scheduling; no timer created", "post_id", post.ID)
		return &Result{PostID: post.ID, Skipped: true}, nil
	}

	now := e.now()
	fire, err := FireTime(*post.Schedule, now, e.loc)
	if err != nil {
		var past *PastScheduleError
		if errors.As(err, &past) {
			err = types.NewAppErrorWithDetails(types.ErrCodeValidationPastSchedule,
				fmt.Sprintf("post %s cannot be scheduled", post.ID), err,
				map[string]any{"post_id": post.ID, "deficit_minutes": past.DeficitMinutes})
		}
		return nil, e.reject(ctx, err)
	}
	expr := FormatAt(fire)
	types.InvocationLogger(ctx, e.logger).DebugContext(ctx, "computed fire time",
		"post_id", post.ID,
		"diff_minutes", int64(fire.Sub(now)/time.Minute),
		"fire_expression", expr,
	)

	input, err := deliveryInput(fields)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode delivery payload", err)
	}

	res := &Result{
		PostID:     post.ID,
		Name:       ScheduleName(post.ID),
		Expression: expr,
		FireAt:     fire,
	}

	err = e.timers.CreateSchedule(ctx, external.ScheduleRequest{
		Name:        res.Name,
		GroupName:   e.cfg.GroupName,
		Expression:  expr,
		Description: fmt.Sprintf("Post %s scheduled by %s", post.ID, post.UserID),
		TargetARN:   e.cfg.TargetARN,
		RoleARN:     e.cfg.RoleARN,
		Input:       input,
	})
	switch {
	case err == nil:
		e.metrics.Count(ctx, types.MetricScheduleCreated, 1, telemetry.Component(component))
	case errors.Is(err, external.ErrScheduleExists):
		res.AlreadyScheduled = true
		e.metrics.Count(ctx, types.MetricScheduleDuplicate, 1, telemetry.Component(component))
	default:
		return nil, e.reject(ctx, err)
	}

	return res, nil
}

// deliveryInput is the original detail with the context tag added.
func deliveryInput(fields map[string]json.RawMessage) (string, error) {
	payload := make(map[string]json.RawMessage, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	tag, err := json.Marshal(types.DeliveryContext24h)
	if err != nil {
		return "", err
	}
	payload["context"] = tag

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *Engine) reject(ctx context.Context, err error) error {
	code := types.CodeOf(err)
	if code == "" {
		code = types.ErrCodeInternalUnexpected
	}
	e.metrics.Count(ctx, types.MetricScheduleRejected, 1,
		telemetry.Component(component), telemetry.Reason(code))
	return err
}
