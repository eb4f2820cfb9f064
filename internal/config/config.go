// Package config defines the configuration structures for the scheduled-post
// pipeline. Each Lambda loads only the configuration it needs once during cold start;
// the result is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or invalid format fails the cold start.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CommonConfig holds settings shared by every function.
type CommonConfig struct {
	Environment     string `envconfig:"APP_ENV" default:"prod" validate:"oneof=local dev staging prod"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ScheduledPosts"`

	AWS AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// IsLocal reports whether the process runs outside the Lambda runtime.
func (c CommonConfig) IsLocal() bool {
	return c.Environment == localEnv
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values fall back to info.
func (c CommonConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AWSConfig holds regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SchedulerConfig configures the scheduling engine.
type SchedulerConfig struct {
	CommonConfig

	GroupName string `envconfig:"SCHEDULE_GROUP_NAME" validate:"required"`
	RoleARN   string `envconfig:"SCHEDULE_ROLE_ARN" validate:"required"`
	TargetARN string `envconfig:"SEND_POST_SERVICE_ARN" validate:"required"`

	// Timezone is an IANA zone name used to interpret schedule fields.
	// Empty means the process local zone.
	Timezone string `envconfig:"SCHEDULE_TIMEZONE"`
}

// Location resolves Timezone. The process local zone is returned when
// Timezone is unset.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("unknown SCHEDULE_TIMEZONE %q", c.Timezone),
			Err:     err,
		}
	}
	return loc, nil
}

// ScheduleAdminConfig configures operator tooling that manages timers
// without creating them.
type ScheduleAdminConfig struct {
	CommonConfig

	GroupName string `envconfig:"SCHEDULE_GROUP_NAME" validate:"required"`
}

// WorkflowConfig configures the workflow router. ARNs are optional at load;
// a missing ARN is reported per invocation.
type WorkflowConfig struct {
	CommonConfig

	WithContextARN    string `envconfig:"POST_WITH_CONTEXT_STATE_MACHINE_ARN"`
	WithoutContextARN string `envconfig:"POST_WITHOUT_CONTEXT_STATE_MACHINE_ARN"`
	TextToVideoARN    string `envconfig:"TEXT_TO_VIDEO_STATE_MACHINE_ARN"`
}

// ChangeRouterConfig configures the stream-to-bus router.
type ChangeRouterConfig struct {
	CommonConfig

	EventBusName string `envconfig:"EVENT_BUS_NAME" validate:"required"`
	Source       string `envconfig:"EVENT_SOURCE" default:"schedule.posts"`
	DetailType   string `envconfig:"EVENT_DETAIL_TYPE" default:"SchedulePostCreated"`

	// PublishConcurrency bounds the PutEvents requests in flight per batch.
	PublishConcurrency int `envconfig:"PUBLISH_CONCURRENCY" default:"4" validate:"min=1,max=10"`
}

// StoreConfig configures direct access to the post table.
type StoreConfig struct {
	CommonConfig

	TableName string `envconfig:"TABLE_NAME" validate:"required"`
}

// DeliveryConfig configures the delivery handler.
type DeliveryConfig struct {
	CommonConfig

	// QueueURL, when set, receives every delivered post as an OutboundPost.
	QueueURL string `envconfig:"DELIVERY_QUEUE_URL" validate:"omitempty,url"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
