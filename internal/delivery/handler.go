// Package delivery receives the payload a fired timer carries. Publishing
// to social platforms is not implemented here; the handler validates and
// records the delivery, then optionally forwards it to an outbound queue.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"postscheduler/internal/posts"
	"postscheduler/internal/telemetry"
	"postscheduler/internal/types"
)

const component = "delivery"

// Forwarder hands a delivered post to downstream publishers.
type Forwarder interface {
	Forward(ctx context.Context, msg types.OutboundPost) error
}

// Handler processes fired timers.
type Handler struct {
	metrics   telemetry.Metrics
	logger    *slog.Logger
	forwarder Forwarder
	now       func() time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithForwarder forwards every decoded delivery through f.
func WithForwarder(f Forwarder) Option {
	return func(h *Handler) { h.forwarder = f }
}

// WithClock overrides the time source used for DeliveredAt.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// NewHandler wires a Handler. A nil metrics sink disables metrics.
func NewHandler(metrics telemetry.Metrics, logger *slog.Logger, opts ...Option) *Handler {
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	h := &Handler{metrics: metrics, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Delivery is the decoded form of a timer payload.
type Delivery struct {
	Post    *types.Post
	Context string
}

// Handle decodes payload ({"posts": <image>, "context": "24hr"}) and
// records the delivery. A payload that cannot be decoded is returned as a
// validation error.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (*Delivery, error) {
	log := types.InvocationLogger(ctx, h.logger)

	var p types.DeliveryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.ErrorContext(ctx, "received undecodable scheduled post payload", "error", err)
		return nil, types.NewAppError(types.ErrCodeValidationInvalidEvent, "delivery payload is not valid JSON", err)
	}

	post, err := posts.DecodeImage(p.Posts)
	if err != nil {
		log.ErrorContext(ctx, "received scheduled post event with invalid post",
			"error", err,
			"context", p.Context,
		)
		return nil, err
	}

	attrs := []any{
		"post_id", post.ID,
		"user_id", post.UserID,
		"context", p.Context,
		"image_count", len(post.ImageURLs),
	}
	if post.Schedule != nil {
		attrs = append(attrs, "scheduled_for", post.Schedule)
	}
	if p.Context != types.DeliveryContext24h {
		log.WarnContext(ctx, "unexpected delivery context", "context", p.Context, "post_id", post.ID)
	}
	log.InfoContext(ctx, "received scheduled post event", attrs...)

	h.metrics.Count(ctx, types.MetricPostDelivered, 1, telemetry.Component(component))

	if h.forwarder != nil {
		if err := h.forwarder.Forward(ctx, h.outbound(ctx, post, p.Context)); err != nil {
			log.ErrorContext(ctx, "failed to forward delivered post", "post_id", post.ID, "error", err)
			return nil, err
		}
		h.metrics.Count(ctx, types.MetricPostForwarded, 1, telemetry.Component(component))
	}

	return &Delivery{Post: post, Context: p.Context}, nil
}

func (h *Handler) outbound(ctx context.Context, post *types.Post, deliveryContext string) types.OutboundPost {
	msg := types.OutboundPost{
		PostID:      post.ID,
		UserID:      post.UserID,
		Content:     post.Content,
		ImageURLs:   post.ImageURLs,
		Context:     deliveryContext,
		DeliveredAt: h.now().UTC(),
		TraceID:     types.GetRequestID(ctx),
	}
	if s := post.Schedule; s != nil {
		msg.ScheduledFor = fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d",
			s.Year, s.Month, s.Day, s.Hour, s.Minute, s.Second)
	}
	return msg
}

// Invoke adapts Handle to the Lambda handler signature.
func (h *Handler) Invoke(ctx context.Context, payload json.RawMessage) error {
	_, err := h.Handle(ctx, payload)
	return err
}
