// Package queue forwards delivered posts to the outbound SQS queue consumed
// by platform publishers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"postscheduler/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Outbox sends OutboundPost messages to a single queue.
type Outbox struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewOutbox creates an Outbox for queueURL.
func NewOutbox(client SQSSender, queueURL string, logger *slog.Logger) *Outbox {
	return &Outbox{client: client, queueURL: queueURL, logger: logger}
}

// Forward serializes msg and sends it. Post and user ids travel as message
// attributes so consumers can filter without decoding the body.
func (o *Outbox) Forward(ctx context.Context, msg types.OutboundPost) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal OutboundPost: %w", err)
	}

	out, err := o.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(o.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"postId":  stringAttr(msg.PostID),
			"userId":  stringAttr(msg.UserID),
			"context": stringAttr(msg.Context),
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to forward post %s to %s", msg.PostID, o.queueURL), err)
	}

	o.logger.InfoContext(ctx, "post forwarded",
		"queue_url", o.queueURL,
		"post_id", msg.PostID,
		"message_id", aws.ToString(out.MessageId),
		"trace_id", msg.TraceID,
	)
	return nil
}

// SQS rejects empty string attributes, so empty values are sent as "-".
func stringAttr(v string) sqsTypes.MessageAttributeValue {
	if v == "" {
		v = "-"
	}
	return sqsTypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
