package types

import (
	"encoding/json"
	"time"
)

// SchedulePostDetail is the detail body published by the change router.
// Posts holds the post's new image in attribute-typed encoding, kept raw so
// it can be forwarded to the delivery handler byte for byte.
type SchedulePostDetail struct {
	Posts json.RawMessage `json:"posts"`
}

// DeliveryPayload is what a fired timer hands to the delivery handler:
// the original event detail plus a context tag.
type DeliveryPayload struct {
	Posts   json.RawMessage `json:"posts"`
	Context string          `json:"context"`
}

// GenerationInput is the request that starts a content-generation workflow.
// UseKB selects the knowledge-base backed workflow variant.
type GenerationInput struct {
	Topic    string   `json:"topic,omitempty"`
	Prompts  []string `json:"prompts,omitempty"`
	Length   string   `json:"length,omitempty"`
	Platform string   `json:"platform,omitempty"`
	Tone     string   `json:"tone,omitempty"`
	UseKB    bool     `json:"useKB"`
}

// TextToVideoInput is the request that starts the text-to-video workflow.
type TextToVideoInput struct {
	Query      string `json:"query"`
	BucketURI  string `json:"bucketUri"`
	FolderUUID string `json:"folderUUID"`
	UserID     string `json:"userId"`
}

// OutboundPost is the message a delivered post is forwarded as when an
// outbound queue is configured. ScheduledFor is the wall-clock schedule in
// the engine's zone layout (2006-01-02T15:04:05), empty when unscheduled.
type OutboundPost struct {
	PostID       string    `json:"postId"`
	UserID       string    `json:"userId"`
	Content      string    `json:"content"`
	ImageURLs    []string  `json:"imageUrls,omitempty"`
	Context      string    `json:"context"`
	ScheduledFor string    `json:"scheduledFor,omitempty"`
	DeliveredAt  time.Time `json:"deliveredAt"`
	TraceID      string    `json:"traceId"`
}
