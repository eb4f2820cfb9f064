package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postscheduler/internal/external"
	"postscheduler/internal/telemetry"
	"postscheduler/internal/types"
)

// mockBus records published events and fails those whose detail contains
// one of the configured post ids.
type mockBus struct {
	mu      sync.Mutex
	fail    map[string]bool
	calls   int
	details []string
}

func (m *mockBus) Publish(_ context.Context, evts []external.BusEvent) []external.PublishResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	out := make([]external.PublishResult, len(evts))
	for i, e := range evts {
		m.details = append(m.details, e.Detail)
		var d struct {
			Posts struct {
				ID struct{ S string } `json:"id"`
			} `json:"posts"`
		}
		_ = json.Unmarshal([]byte(e.Detail), &d)
		if m.fail[d.Posts.ID.S] {
			out[i].Err = errors.New("rejected")
			continue
		}
		out[i].EventID = "evt-" + d.Posts.ID.S
	}
	return out
}

type mockMetrics struct {
	mu     sync.Mutex
	values map[string]float64
}

func (m *mockMetrics) Count(_ context.Context, metric string, v float64, _ ...telemetry.Dimension) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]float64{}
	}
	m.values[metric] += v
}

func postRecord(eventName, id, seq string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "rec-" + seq,
		EventName: eventName,
		Change: events.DynamoDBStreamRecord{
			SequenceNumber: seq,
			NewImage: map[string]events.DynamoDBAttributeValue{
				"PK":           events.NewStringAttribute("POST#" + id),
				"id":           events.NewStringAttribute(id),
				"entity":       events.NewStringAttribute(types.EntityPost),
				"userId":       events.NewStringAttribute("u1"),
				"schedulePost": events.NewBooleanAttribute(true),
				"updatedOn":    events.NewNullAttribute(),
				"schedule": events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
					"year":  events.NewNumberAttribute("2030"),
					"month": events.NewNumberAttribute("1"),
				}),
			},
		},
	}
}

func userRecord(seq string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventName: types.StreamEventInsert,
		Change: events.DynamoDBStreamRecord{
			SequenceNumber: seq,
			NewImage: map[string]events.DynamoDBAttributeValue{
				"entity": events.NewStringAttribute("USER"),
			},
		},
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(postRecord(types.StreamEventInsert, "p1", "1")))
	assert.False(t, Matches(postRecord(types.StreamEventModify, "p1", "2")))
	assert.False(t, Matches(postRecord(types.StreamEventRemove, "p1", "3")))
	assert.False(t, Matches(userRecord("4")))
	assert.False(t, Matches(events.DynamoDBEventRecord{EventName: types.StreamEventInsert}))
}

func TestDetail_WrapsNewImageUnderPosts(t *testing.T) {
	detail, err := Detail(postRecord(types.StreamEventInsert, "p1", "1"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"posts": {
		"PK": {"S": "POST#p1"},
		"id": {"S": "p1"},
		"entity": {"S": "POST"},
		"userId": {"S": "u1"},
		"schedulePost": {"BOOL": true},
		"updatedOn": {"NULL": true},
		"schedule": {"M": {"year": {"N": "2030"}, "month": {"N": "1"}}}
	}}`, detail)
}

func TestHandle_PublishesOnlyPostInserts(t *testing.T) {
	bus := &mockBus{}
	metrics := &mockMetrics{}
	r := NewRouter(Config{}, bus, metrics, slog.Default())

	resp, err := r.Handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		postRecord(types.StreamEventInsert, "p1", "1"),
		postRecord(types.StreamEventModify, "p1", "2"),
		userRecord("3"),
		postRecord(types.StreamEventInsert, "p2", "4"),
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Len(t, bus.details, 2)
	assert.Equal(t, 2.0, metrics.values[types.MetricChangeEventsRouted])
}

func TestHandle_UsesConfiguredRouting(t *testing.T) {
	var got []external.BusEvent
	bus := publisherFunc(func(_ context.Context, evts []external.BusEvent) []external.PublishResult {
		got = append(got, evts...)
		return make([]external.PublishResult, len(evts))
	})
	r := NewRouter(Config{}, bus, nil, slog.Default())

	_, err := r.Handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		postRecord(types.StreamEventInsert, "p1", "1"),
	}})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "schedule.posts", got[0].Source)
	assert.Equal(t, "SchedulePostCreated", got[0].DetailType)
}

func TestHandle_ReportsFailedRecords(t *testing.T) {
	bus := &mockBus{fail: map[string]bool{"p2": true}}
	r := NewRouter(Config{}, bus, nil, slog.Default())

	resp, err := r.Handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		postRecord(types.StreamEventInsert, "p1", "100"),
		postRecord(types.StreamEventInsert, "p2", "200"),
		postRecord(types.StreamEventInsert, "p3", "300"),
	}})

	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "200", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestHandle_SummarizesRejectedBatch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	bus := &mockBus{fail: map[string]bool{"p1": true}}

	resp, err := NewRouter(Config{}, bus, nil, logger).Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{postRecord(types.StreamEventInsert, "p1", "100")},
	})

	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Contains(t, buf.String(), `"msg":"event bus rejected part of the batch"`)
	assert.Contains(t, buf.String(), `"first_error":"rejected"`)
}

func TestHandle_NoSummaryWhenAllPublished(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	_, err := NewRouter(Config{}, &mockBus{}, nil, logger).Handle(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{postRecord(types.StreamEventInsert, "p1", "100")},
	})

	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "rejected part of the batch")
}

func TestHandle_ChunksLargeBatchesConcurrently(t *testing.T) {
	bus := &mockBus{fail: map[string]bool{"p17": true}}
	metrics := &mockMetrics{}
	r := NewRouter(Config{Concurrency: 3}, bus, metrics, slog.Default())

	var records []events.DynamoDBEventRecord
	for i := range 35 {
		records = append(records, postRecord(types.StreamEventInsert, fmt.Sprintf("p%d", i), fmt.Sprintf("%d", i)))
	}

	resp, err := r.Handle(context.Background(), events.DynamoDBEvent{Records: records})
	require.NoError(t, err)

	assert.Equal(t, 4, bus.calls)
	assert.Len(t, bus.details, 35)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "17", resp.BatchItemFailures[0].ItemIdentifier)
	assert.Equal(t, 34.0, metrics.values[types.MetricChangeEventsRouted])
}

func TestHandle_ShortResultIsFailure(t *testing.T) {
	bus := publisherFunc(func(context.Context, []external.BusEvent) []external.PublishResult { return nil })
	r := NewRouter(Config{}, bus, nil, slog.Default())

	resp, err := r.Handle(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		postRecord(types.StreamEventInsert, "p1", "1"),
	}})
	require.NoError(t, err)
	assert.Len(t, resp.BatchItemFailures, 1)
}

func TestHandle_EmptyBatch(t *testing.T) {
	bus := &mockBus{}
	resp, err := NewRouter(Config{}, bus, nil, slog.Default()).Handle(context.Background(), events.DynamoDBEvent{})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Zero(t, bus.calls)
}

type publisherFunc func(context.Context, []external.BusEvent) []external.PublishResult

func (f publisherFunc) Publish(ctx context.Context, evts []external.BusEvent) []external.PublishResult {
	return f(ctx, evts)
}
