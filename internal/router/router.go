// Package router forwards newly inserted posts from the table stream to the
// event bus, where the scheduling engine picks them up.
package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"postscheduler/internal/external"
	"postscheduler/internal/posts"
	"postscheduler/internal/telemetry"
	"postscheduler/internal/types"
)

const (
	component = "change-router"

	// publishChunk matches the PutEvents entry limit so each goroutine
	// issues a single request.
	publishChunk = 10

	defaultConcurrency = 4
)

// Publisher sends events to the bus, reporting one result per event.
type Publisher interface {
	Publish(ctx context.Context, events []external.BusEvent) []external.PublishResult
}

// Config names the routing attributes stamped on every event.
type Config struct {
	Source      string
	DetailType  string
	Concurrency int
}

// Router turns stream records into SchedulePostCreated events.
type Router struct {
	cfg     Config
	bus     Publisher
	metrics telemetry.Metrics
	logger  *slog.Logger
}

// NewRouter wires a Router. Empty Source and DetailType fall back to the
// schedule.posts / SchedulePostCreated pair.
func NewRouter(cfg Config, bus Publisher, metrics telemetry.Metrics, logger *slog.Logger) *Router {
	if cfg.Source == "" {
		cfg.Source = types.SourceSchedulePosts
	}
	if cfg.DetailType == "" {
		cfg.DetailType = types.DetailTypeSchedulePostCreated
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Router{cfg: cfg, bus: bus, metrics: metrics, logger: logger}
}

// Matches reports whether record is the insertion of a post.
func Matches(record events.DynamoDBEventRecord) bool {
	return record.EventName == types.StreamEventInsert && posts.IsPostImage(record.Change.NewImage)
}

// Detail reshapes a record into the event detail {"posts": <NewImage>}.
func Detail(record events.DynamoDBEventRecord) (string, error) {
	b, err := json.Marshal(struct {
		Posts map[string]events.DynamoDBAttributeValue `json:"posts"`
	}{Posts: record.Change.NewImage})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type pending struct {
	record events.DynamoDBEventRecord
	event  external.BusEvent
}

// Handle publishes every matching record and reports the ones that could
// not be published as batch item failures so only they are redelivered.
func (r *Router) Handle(ctx context.Context, event events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	log := types.InvocationLogger(ctx, r.logger)
	var resp events.DynamoDBEventResponse

	var batch []pending
	for _, record := range event.Records {
		if !Matches(record) {
			continue
		}
		detail, err := Detail(record)
		if err != nil {
			log.ErrorContext(ctx, "failed to encode stream record",
				"event_id", record.EventID, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, failure(record))
			continue
		}
		batch = append(batch, pending{
			record: record,
			event: external.BusEvent{
				Source:     r.cfg.Source,
				DetailType: r.cfg.DetailType,
				Detail:     detail,
			},
		})
	}

	log.InfoContext(ctx, "routing stream records",
		"records", len(event.Records),
		"matched", len(batch),
	)
	if len(batch) == 0 {
		return resp, nil
	}

	results := make([]external.PublishResult, len(batch))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for start := 0; start < len(batch); start += publishChunk {
		end := min(start+publishChunk, len(batch))
		g.Go(func() error {
			chunk := make([]external.BusEvent, 0, end-start)
			for _, p := range batch[start:end] {
				chunk = append(chunk, p.event)
			}
			copy(results[start:end], r.bus.Publish(ctx, chunk))
			for _, res := range results[start:end] {
				if res.Err != nil {
					return res.Err
				}
			}
			return nil
		})
	}
	// Failures are reported per record below; the group error is the
	// first rejection, kept for a batch-level summary line.
	if err := g.Wait(); err != nil {
		log.WarnContext(ctx, "event bus rejected part of the batch", "first_error", err)
	}

	routed := 0
	for i, res := range results {
		if res.Err != nil || res.EventID == "" {
			log.ErrorContext(ctx, "failed to publish post event",
				"event_id", batch[i].record.EventID,
				"sequence_number", batch[i].record.Change.SequenceNumber,
				"error", res.Err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, failure(batch[i].record))
			continue
		}
		routed++
	}

	r.metrics.Count(ctx, types.MetricChangeEventsRouted, float64(routed), telemetry.Component(component))
	log.InfoContext(ctx, "stream records routed",
		"routed", routed,
		"failed", len(resp.BatchItemFailures),
	)
	return resp, nil
}

func failure(record events.DynamoDBEventRecord) events.DynamoDBBatchItemFailure {
	return events.DynamoDBBatchItemFailure{ItemIdentifier: record.Change.SequenceNumber}
}
