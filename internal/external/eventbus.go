package external

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"postscheduler/internal/types"
)

// maxPutEventsEntries is the PutEvents per-request entry limit.
const maxPutEventsEntries = 10

// EventBridgeAPI is the subset of the EventBridge client used here.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// BusEvent is one event to publish.
type BusEvent struct {
	Source     string
	DetailType string
	Detail     string
}

// PublishResult reports the outcome of one BusEvent, index-aligned with the
// input slice.
type PublishResult struct {
	EventID string
	Err     error
}

// EventBusClient publishes events to a single bus.
type EventBusClient struct {
	api     EventBridgeAPI
	busName string
}

// NewEventBusClient binds api to busName.
func NewEventBusClient(api EventBridgeAPI, busName string) *EventBusClient {
	return &EventBusClient{api: api, busName: busName}
}

// Publish sends events in chunks of ten. A failed request marks every entry
// of its chunk as failed; per-entry rejections are reported individually.
func (c *EventBusClient) Publish(ctx context.Context, events []BusEvent) []PublishResult {
	results := make([]PublishResult, len(events))

	for start := 0; start < len(events); start += maxPutEventsEntries {
		end := min(start+maxPutEventsEntries, len(events))
		chunk := events[start:end]

		entries := make([]ebtypes.PutEventsRequestEntry, 0, len(chunk))
		for _, e := range chunk {
			entries = append(entries, ebtypes.PutEventsRequestEntry{
				EventBusName: aws.String(c.busName),
				Source:       aws.String(e.Source),
				DetailType:   aws.String(e.DetailType),
				Detail:       aws.String(e.Detail),
			})
		}

		out, err := c.api.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
		if err != nil {
			appErr := mapUpstreamError(types.ErrCodeUpstreamEventBus,
				fmt.Sprintf("failed to put %d events on %s", len(chunk), c.busName), err)
			for i := start; i < end; i++ {
				results[i].Err = appErr
			}
			continue
		}

		for i := range chunk {
			if i >= len(out.Entries) {
				results[start+i].Err = types.NewAppError(types.ErrCodeUpstreamEventBus,
					"event bus returned fewer result entries than submitted", nil)
				continue
			}
			entry := out.Entries[i]
			if code := aws.ToString(entry.ErrorCode); code != "" {
				results[start+i].Err = types.NewAppErrorWithDetails(types.ErrCodeUpstreamEventBus,
					fmt.Sprintf("event rejected: %s", aws.ToString(entry.ErrorMessage)), nil,
					map[string]any{"error_code": code})
				continue
			}
			results[start+i].EventID = aws.ToString(entry.EventId)
		}
	}

	return results
}
