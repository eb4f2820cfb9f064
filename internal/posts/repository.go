package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"postscheduler/internal/types"
)

// DynamoDBAPI is the subset of the DynamoDB client used by Repository.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// postItem is the single-table layout of a post. Inserting one produces the
// stream record that drives the scheduling pipeline.
type postItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI2PK string `dynamodbav:"GSI2PK"`
	GSI2SK string `dynamodbav:"GSI2SK"`
	GSI3PK string `dynamodbav:"GSI3PK"`
	GSI3SK string `dynamodbav:"GSI3SK"`

	ID           string         `dynamodbav:"id"`
	Entity       string         `dynamodbav:"entity"`
	Content      string         `dynamodbav:"content"`
	UserID       string         `dynamodbav:"userId"`
	ImageURLs    []string       `dynamodbav:"imageUrls,omitempty"`
	SchedulePost bool           `dynamodbav:"schedulePost"`
	Schedule     *scheduleImage `dynamodbav:"schedule,omitempty"`
	CreatedOn    int64          `dynamodbav:"createdOn"`
	UpdatedOn    *int64         `dynamodbav:"updatedOn"`
}

// Repository writes posts to the single-table store.
type Repository struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
	newID     func() (uuid.UUID, error)
}

// NewRepository creates a Repository bound to tableName.
func NewRepository(client DynamoDBAPI, tableName string) *Repository {
	return &Repository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		newID:     uuid.NewV7,
	}
}

// PostKey returns the partition and sort key value for a post id.
func PostKey(id string) string {
	return "POST#" + id
}

// Create validates in, assigns a time-ordered id and inserts the post.
// The write is conditional so an id collision never overwrites a post.
func (r *Repository) Create(ctx context.Context, in types.PostInput) (*types.Post, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}

	id, err := r.newID()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate post id", err)
	}

	post := &types.Post{
		ID:           id.String(),
		Entity:       types.EntityPost,
		Content:      in.Content,
		UserID:       in.UserID,
		ImageURLs:    in.ImageURLs,
		SchedulePost: in.SchedulePost,
		Schedule:     in.Schedule,
		CreatedOn:    r.now().UnixMilli(),
	}

	item, err := attributevalue.MarshalMap(newPostItem(post))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal post item", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictPostExists,
				"post already exists", err, map[string]any{"post_id": post.ID})
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamStore,
			fmt.Sprintf("failed to put post %s", post.ID), err)
	}

	return post, nil
}

func newPostItem(p *types.Post) postItem {
	key := PostKey(p.ID)
	return postItem{
		PK:           key,
		SK:           key,
		GSI2PK:       "POST#",
		GSI2SK:       key,
		GSI3PK:       "USER#" + p.UserID,
		GSI3SK:       key,
		ID:           p.ID,
		Entity:       p.Entity,
		Content:      p.Content,
		UserID:       p.UserID,
		ImageURLs:    p.ImageURLs,
		SchedulePost: p.SchedulePost,
		Schedule:     newScheduleImage(p.Schedule),
		CreatedOn:    p.CreatedOn,
		UpdatedOn:    p.UpdatedOn,
	}
}

// ValidateInput checks a PostInput before it is stored. A post marked for
// scheduling must carry a complete, in-range schedule.
func ValidateInput(in types.PostInput) error {
	if err := validate.Struct(in); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidPost,
			"post input is invalid", err, map[string]any{"fields": invalidFields(err)})
	}
	if !in.SchedulePost {
		return nil
	}
	if in.Schedule == nil {
		return types.NewAppError(types.ErrCodeValidationMissingSchedule,
			"post is marked for scheduling but has no schedule", nil)
	}
	img := newScheduleImage(in.Schedule)
	if err := validate.Struct(img); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingSchedule,
			"post schedule is out of range", err, map[string]any{"fields": invalidFields(err)})
	}
	if !img.calendarDate() {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingSchedule,
			"post schedule names a day that does not exist", nil, map[string]any{"fields": []string{"Day"}})
	}
	return nil
}
