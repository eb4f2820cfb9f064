// Package telemetry publishes pipeline counters to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"postscheduler/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics records pipeline outcomes. Implementations never fail the caller.
type Metrics interface {
	Count(ctx context.Context, metric string, value float64, dims ...Dimension)
}

// Dimension is a single CloudWatch dimension.
type Dimension struct {
	Name  string
	Value string
}

// Component builds the Component dimension every metric carries.
func Component(name string) Dimension {
	return Dimension{Name: types.DimComponent, Value: name}
}

// Workflow builds the Workflow dimension.
func Workflow(name string) Dimension {
	return Dimension{Name: types.DimWorkflow, Value: name}
}

// Reason builds the Reason dimension.
func Reason(code types.ErrorCode) Dimension {
	return Dimension{Name: types.DimReason, Value: string(code)}
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics implements Metrics by emitting one datum per call.
//
// Metrics emitted:
//   - ScheduleCreated / ScheduleDuplicate / ScheduleRejected: Dims {Component[, Reason]}
//   - WorkflowStarted / WorkflowFailed: Dims {Component, Workflow}
//   - PostDelivered: Dims {Component}
//   - ChangeEventsRouted: Dims {Component}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	now       func() time.Time
}

// NewCloudWatchMetrics creates a publisher for namespace. An empty namespace
// falls back to types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

// Count emits metric with the Count unit. Publish failures are logged only.
func (m *CloudWatchMetrics) Count(ctx context.Context, metric string, value float64, dims ...Dimension) {
	cwDims := make([]cwtypes.Dimension, 0, len(dims))
	for _, d := range dims {
		cwDims = append(cwDims, cwtypes.Dimension{
			Name:  aws.String(d.Name),
			Value: aws.String(d.Value),
		})
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(metric),
				Value:      aws.Float64(value),
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  aws.Time(m.now()),
				Dimensions: cwDims,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record metric",
			"error", err.Error(),
			"metric", metric,
		)
	}
}

// NopMetrics discards everything. Used in local mode and tests.
type NopMetrics struct{}

// Count implements Metrics.
func (NopMetrics) Count(context.Context, string, float64, ...Dimension) {}
