package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postscheduler/internal/external"
	"postscheduler/internal/telemetry"
	"postscheduler/internal/types"
)

// mockTimers is an in-memory Timer Service that rejects duplicate names.
type mockTimers struct {
	err      error
	requests []external.ScheduleRequest
	names    map[string]bool
}

func (m *mockTimers) CreateSchedule(_ context.Context, req external.ScheduleRequest) error {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return m.err
	}
	if m.names == nil {
		m.names = make(map[string]bool)
	}
	if m.names[req.Name] {
		return types.NewAppError(types.ErrCodeConflictScheduleExists, "exists", external.ErrScheduleExists)
	}
	m.names[req.Name] = true
	return nil
}

type countedMetric struct {
	name string
	dims []telemetry.Dimension
}

type mockMetrics struct {
	counts []countedMetric
}

func (m *mockMetrics) Count(_ context.Context, metric string, _ float64, dims ...telemetry.Dimension) {
	m.counts = append(m.counts, countedMetric{name: metric, dims: dims})
}

func (m *mockMetrics) names() []string {
	out := make([]string, 0, len(m.counts))
	for _, c := range m.counts {
		out = append(out, c.name)
	}
	return out
}

var testConfig = Config{
	GroupName: "posts",
	RoleARN:   "arn:aws:iam::123456789012:role/scheduler",
	TargetARN: "arn:aws:lambda:us-east-1:123456789012:function:send-posts",
}

var testNow = time.Date(2029, 12, 31, 23, 58, 0, 0, time.UTC)

func newTestEngine(timers TimerService, metrics telemetry.Metrics) *Engine {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	return NewEngine(testConfig, timers, metrics, logger,
		WithClock(func() time.Time { return testNow }),
		WithLocation(time.UTC),
	)
}

func postImage(id string, schedulePost bool, schedule string) string {
	img := fmt.Sprintf(`{
		"PK": {"S": "POST#%[1]s"},
		"id": {"S": "%[1]s"},
		"entity": {"S": "POST"},
		"content": {"S": "hello"},
		"userId": {"S": "u1"},
		"schedulePost": {"BOOL": %[2]t},
		"createdOn": {"N": "1767225600000"},
		"updatedOn": {"NULL": true}`, id, schedulePost)
	if schedule != "" {
		img += `, "schedule": ` + schedule
	}
	return img + "}"
}

const newYearSchedule = `{"M": {"year": {"N": "2030"}, "month": {"N": "1"}, "day": {"N": "1"},
	"hour": {"N": "0"}, "minute": {"N": "0"}, "second": {"N": "0"}}}`

func changeEvent(detail string) events.EventBridgeEvent {
	return events.EventBridgeEvent{
		ID:         "evt-1",
		Source:     types.SourceSchedulePosts,
		DetailType: types.DetailTypeSchedulePostCreated,
		Detail:     json.RawMessage(detail),
	}
}

func TestEngine_SchedulesPost(t *testing.T) {
	timers := &mockTimers{}
	metrics := &mockMetrics{}
	image := postImage("p1", true, newYearSchedule)
	detail := `{"posts": ` + image + `}`

	res, err := newTestEngine(timers, metrics).HandleDetail(context.Background(), json.RawMessage(detail))
	require.NoError(t, err)

	assert.Equal(t, "p1", res.PostID)
	assert.Equal(t, "p1-scheduled-post", res.Name)
	assert.Equal(t, "at(2030-01-01T00:00:00)", res.Expression)
	assert.False(t, res.AlreadyScheduled)

	require.Len(t, timers.requests, 1)
	req := timers.requests[0]
	assert.Equal(t, "p1-scheduled-post", req.Name)
	assert.Equal(t, "posts", req.GroupName)
	assert.Equal(t, "at(2030-01-01T00:00:00)", req.Expression)
	assert.Equal(t, testConfig.TargetARN, req.TargetARN)
	assert.Equal(t, testConfig.RoleARN, req.RoleARN)
	assert.Equal(t, "Post p1 scheduled by u1", req.Description)

	var payload types.DeliveryPayload
	require.NoError(t, json.Unmarshal([]byte(req.Input), &payload))
	assert.Equal(t, types.DeliveryContext24h, payload.Context)
	assert.JSONEq(t, image, string(payload.Posts))

	assert.Equal(t, []string{types.MetricScheduleCreated}, metrics.names())
}

func TestEngine_PreservesExtraDetailFields(t *testing.T) {
	timers := &mockTimers{}
	detail := `{"posts": ` + postImage("p1", true, newYearSchedule) + `, "traceId": "abc"}`

	_, err := newTestEngine(timers, nil).HandleDetail(context.Background(), json.RawMessage(detail))
	require.NoError(t, err)

	var input map[string]any
	require.NoError(t, json.Unmarshal([]byte(timers.requests[0].Input), &input))
	assert.Equal(t, "abc", input["traceId"])
	assert.Equal(t, "24hr", input["context"])
}

func TestEngine_IdempotentAcrossRedelivery(t *testing.T) {
	timers := &mockTimers{}
	metrics := &mockMetrics{}
	engine := newTestEngine(timers, metrics)
	event := changeEvent(`{"posts": ` + postImage("p1", true, newYearSchedule) + `}`)

	require.NoError(t, engine.HandleEvent(context.Background(), event))
	require.NoError(t, engine.HandleEvent(context.Background(), event))

	require.Len(t, timers.requests, 2)
	assert.Equal(t, timers.requests[0].Name, timers.requests[1].Name)
	assert.Len(t, timers.names, 1)
	assert.Equal(t, []string{types.MetricScheduleCreated, types.MetricScheduleDuplicate}, metrics.names())

	res, err := engine.HandleDetail(context.Background(), event.Detail)
	require.NoError(t, err)
	assert.True(t, res.AlreadyScheduled)
}

func TestEngine_RejectsTargetEqualToNow(t *testing.T) {
	timers := &mockTimers{}
	metrics := &mockMetrics{}
	engine := NewEngine(testConfig, timers, metrics, slog.Default(),
		WithClock(func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }),
		WithLocation(time.UTC),
	)

	err := engine.HandleEvent(context.Background(), changeEvent(`{"posts": `+postImage("p1", true, newYearSchedule)+`}`))
	require.Error(t, err)

	var past *PastScheduleError
	require.ErrorAs(t, err, &past)
	assert.Equal(t, int64(0), past.DeficitMinutes)
	assert.Equal(t, types.ErrCodeValidationPastSchedule, types.CodeOf(err))
	assert.False(t, types.CodeOf(err).Retryable())
	assert.Empty(t, timers.requests)

	require.Len(t, metrics.counts, 1)
	assert.Equal(t, types.MetricScheduleRejected, metrics.counts[0].name)
	assert.Contains(t, metrics.counts[0].dims, telemetry.Reason(types.ErrCodeValidationPastSchedule))
}

func TestEngine_MissingScheduleIsFatal(t *testing.T) {
	timers := &mockTimers{}

	err := newTestEngine(timers, nil).HandleEvent(context.Background(),
		changeEvent(`{"posts": `+postImage("p1", true, "")+`}`))

	assert.Equal(t, types.ErrCodeValidationMissingSchedule, types.CodeOf(err))
	assert.Empty(t, timers.requests)
}

func TestEngine_SkipsUnscheduledPost(t *testing.T) {
	timers := &mockTimers{}
	metrics := &mockMetrics{}

	res, err := newTestEngine(timers, metrics).HandleDetail(context.Background(),
		json.RawMessage(`{"posts": `+postImage("p2", false, "")+`}`))

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, timers.requests)
	assert.Empty(t, metrics.counts)
}

func TestEngine_TimerServiceErrorPropagates(t *testing.T) {
	upstream := types.NewAppError(types.ErrCodeUpstreamScheduler, "unavailable", errors.New("503"))
	timers := &mockTimers{err: upstream}

	err := newTestEngine(timers, nil).HandleEvent(context.Background(),
		changeEvent(`{"posts": `+postImage("p1", true, newYearSchedule)+`}`))

	require.ErrorIs(t, err, upstream)
	assert.True(t, types.CodeOf(err).Retryable())
	assert.Len(t, timers.requests, 1, "no internal retry")
}

func TestEngine_MissingConfiguration(t *testing.T) {
	timers := &mockTimers{}
	engine := NewEngine(Config{GroupName: "posts"}, timers, nil, slog.Default())

	_, err := engine.HandleDetail(context.Background(),
		json.RawMessage(`{"posts": `+postImage("p1", true, newYearSchedule)+`}`))

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalConfigMissing, appErr.Code)
	assert.Equal(t, []string{"SCHEDULE_ROLE_ARN", "SEND_POST_SERVICE_ARN"}, appErr.Details["missing"])
	assert.Empty(t, timers.requests)
}

func TestEngine_MalformedDetail(t *testing.T) {
	for _, detail := range []string{``, `null`, `"text"`, `{}`, `{"posts": null}`} {
		timers := &mockTimers{}
		_, err := newTestEngine(timers, nil).HandleDetail(context.Background(), json.RawMessage(detail))

		assert.Equal(t, types.ErrCodeValidationInvalidEvent, types.CodeOf(err), "detail %q", detail)
		assert.Empty(t, timers.requests)
	}
}

func TestNewEngine_DefaultsToLocalTime(t *testing.T) {
	engine := NewEngine(testConfig, &mockTimers{}, nil, slog.Default(), WithLocation(nil))
	assert.Equal(t, time.Local, engine.loc)
	assert.IsType(t, telemetry.NopMetrics{}, engine.metrics)
}
