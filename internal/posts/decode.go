// Package posts owns the post record: decoding the attribute-typed images
// captured by the table stream, validating them, and writing new posts.
package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"

	"postscheduler/internal/types"
)

var validate = validator.New()

// scheduleImage mirrors the stored schedule map. Pointer fields keep an
// absent attribute distinguishable from a zero value.
type scheduleImage struct {
	Year   *int `dynamodbav:"year" validate:"required,min=1,max=9999"`
	Month  *int `dynamodbav:"month" validate:"required,min=1,max=12"`
	Day    *int `dynamodbav:"day" validate:"required,min=1,max=31"`
	Hour   *int `dynamodbav:"hour" validate:"required,min=0,max=23"`
	Minute *int `dynamodbav:"minute" validate:"required,min=0,max=59"`
	Second *int `dynamodbav:"second" validate:"required,min=0,max=59"`
}

// postImage is the post as it appears in a stream NewImage. Key and index
// attributes (PK, SK, GSI*) are ignored.
type postImage struct {
	ID           string         `dynamodbav:"id" validate:"required"`
	Entity       string         `dynamodbav:"entity"`
	Content      string         `dynamodbav:"content"`
	UserID       string         `dynamodbav:"userId" validate:"required"`
	ImageURLs    []string       `dynamodbav:"imageUrls"`
	SchedulePost bool           `dynamodbav:"schedulePost"`
	Schedule     *scheduleImage `dynamodbav:"schedule" validate:"-"`
	CreatedOn    int64          `dynamodbav:"createdOn"`
	UpdatedOn    *int64         `dynamodbav:"updatedOn"`
}

// DecodeImage unwraps a post image in attribute-typed JSON encoding
// ({"S": ...}, {"N": ...}, {"M": ...} and so on) into a validated Post.
func DecodeImage(raw json.RawMessage) (*types.Post, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidEvent, "post image is empty", nil)
	}

	var image map[string]events.DynamoDBAttributeValue
	if err := json.Unmarshal(raw, &image); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidEvent, "post image is not attribute-typed JSON", err)
	}

	return DecodeAttributeMap(image)
}

// DecodeAttributeMap converts a stream NewImage into a validated Post.
func DecodeAttributeMap(image map[string]events.DynamoDBAttributeValue) (*types.Post, error) {
	item, err := toAttributeMap(image)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidEvent, "unsupported attribute in post image", err)
	}

	var img postImage
	if err := attributevalue.UnmarshalMap(item, &img); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidPost, "post image has unexpected attribute types", err)
	}

	if err := img.check(); err != nil {
		return nil, err
	}

	return img.toPost(), nil
}

func (img *postImage) check() error {
	if err := validate.Struct(img); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"post image is missing required attributes", err,
			map[string]any{"post_id": img.ID})
	}

	if !img.SchedulePost {
		return nil
	}
	if img.Schedule == nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingSchedule,
			fmt.Sprintf("post %s is marked for scheduling but has no schedule", img.ID), nil,
			map[string]any{"post_id": img.ID})
	}
	if err := validate.Struct(img.Schedule); err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingSchedule,
			fmt.Sprintf("post %s has an incomplete or out of range schedule", img.ID), err,
			map[string]any{"post_id": img.ID, "fields": invalidFields(err)})
	}
	if !img.Schedule.calendarDate() {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingSchedule,
			fmt.Sprintf("post %s is scheduled on a day that does not exist", img.ID), nil,
			map[string]any{"post_id": img.ID, "fields": []string{"Day"}})
	}
	return nil
}

func (img *postImage) toPost() *types.Post {
	p := &types.Post{
		ID:           img.ID,
		Entity:       img.Entity,
		Content:      img.Content,
		UserID:       img.UserID,
		ImageURLs:    img.ImageURLs,
		SchedulePost: img.SchedulePost,
		CreatedOn:    img.CreatedOn,
		UpdatedOn:    img.UpdatedOn,
	}
	if s := img.Schedule; s != nil && s.complete() {
		p.Schedule = &types.Schedule{
			Year:   *s.Year,
			Month:  *s.Month,
			Day:    *s.Day,
			Hour:   *s.Hour,
			Minute: *s.Minute,
			Second: *s.Second,
		}
	}
	return p
}

func (s *scheduleImage) complete() bool {
	return s.Year != nil && s.Month != nil && s.Day != nil &&
		s.Hour != nil && s.Minute != nil && s.Second != nil
}

// calendarDate reports whether year/month/day name a real day, so
// 2030-02-30 is rejected instead of rolling over to March. The check runs
// in UTC; daylight-saving gaps are a property of the zone, not the date.
func (s *scheduleImage) calendarDate() bool {
	d := time.Date(*s.Year, time.Month(*s.Month), *s.Day, 0, 0, 0, 0, time.UTC)
	return d.Year() == *s.Year && int(d.Month()) == *s.Month && d.Day() == *s.Day
}

func newScheduleImage(s *types.Schedule) *scheduleImage {
	if s == nil {
		return nil
	}
	return &scheduleImage{
		Year:   &s.Year,
		Month:  &s.Month,
		Day:    &s.Day,
		Hour:   &s.Hour,
		Minute: &s.Minute,
		Second: &s.Second,
	}
}

// invalidFields lists the struct fields a validator error complained about.
func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// toAttributeMap converts the Lambda event representation of an item into
// the SDK representation understood by attributevalue.
func toAttributeMap(image map[string]events.DynamoDBAttributeValue) (map[string]ddbtypes.AttributeValue, error) {
	out := make(map[string]ddbtypes.AttributeValue, len(image))
	for k, v := range image {
		av, err := toAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func toAttributeValue(v events.DynamoDBAttributeValue) (ddbtypes.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &ddbtypes.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &ddbtypes.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBoolean:
		return &ddbtypes.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &ddbtypes.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeBinary:
		return &ddbtypes.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeStringSet:
		return &ddbtypes.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &ddbtypes.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &ddbtypes.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeMap:
		m, err := toAttributeMap(v.Map())
		if err != nil {
			return nil, err
		}
		return &ddbtypes.AttributeValueMemberM{Value: m}, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]ddbtypes.AttributeValue, 0, len(list))
		for i, item := range list {
			av, err := toAttributeValue(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			out = append(out, av)
		}
		return &ddbtypes.AttributeValueMemberL{Value: out}, nil
	default:
		return nil, fmt.Errorf("unknown attribute data type %d", v.DataType())
	}
}

// IsPostImage reports whether a stream image carries the post entity
// discriminator.
func IsPostImage(image map[string]events.DynamoDBAttributeValue) bool {
	entity, ok := image["entity"]
	if !ok || entity.DataType() != events.DataTypeString {
		return false
	}
	return entity.String() == types.EntityPost
}
