// Package bootstrap holds the cold-start wiring shared by every Lambda entry
// point: logger construction, AWS SDK configuration, metric sink selection,
// and the choice between the Lambda runtime and a one-shot local run.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"postscheduler/internal/config"
	"postscheduler/internal/telemetry"
)

// Logger builds the JSON logger used for the lifetime of the process.
func Logger(common config.CommonConfig, function string) *slog.Logger {
	return newLogger(os.Stdout, common, function)
}

func newLogger(w io.Writer, common config.CommonConfig, function string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: common.SlogLevel(),
	})).With(
		"function", function,
		"env", common.Environment,
		"version", common.Build.Version,
	)
}

// SecretProvider returns the SSM provider for the region in the environment.
// Load skips it entirely when APP_ENV=local.
func SecretProvider() config.SecretProvider {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return config.NewSSMProvider(region)
}

// AWSConfig loads the SDK configuration for the configured region. A
// non-empty AWS_ENDPOINT_URL redirects every client (LocalStack).
func AWSConfig(ctx context.Context, common config.CommonConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(common.AWS.Region),
	}
	if common.AWS.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(common.AWS.EndpointURL))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", common.AWS.Region, err)
	}
	return cfg, nil
}

// Metrics returns the CloudWatch sink, or a no-op sink when running locally.
func Metrics(common config.CommonConfig, awsCfg aws.Config, logger *slog.Logger) telemetry.Metrics {
	if common.IsLocal() {
		return telemetry.NopMetrics{}
	}
	return telemetry.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), common.MetricNamespace, logger)
}

// Start hands handler to the Lambda runtime. With APP_ENV=local it instead
// decodes a single event from stdin, runs the handler once, and writes the
// response to stdout.
func Start[E, R any](common config.CommonConfig, logger *slog.Logger, handler func(context.Context, E) (R, error)) {
	if !common.IsLocal() {
		lambda.Start(handler)
		return
	}

	logger.Info("running in local mode, reading event from stdin")
	if err := runLocal(context.Background(), os.Stdin, os.Stdout, handler); err != nil {
		logger.Error("local invocation failed", "error", err)
		os.Exit(1)
	}
}

// StartNoResult adapts handlers that return only an error.
func StartNoResult[E any](common config.CommonConfig, logger *slog.Logger, handler func(context.Context, E) error) {
	Start(common, logger, func(ctx context.Context, event E) (struct{}, error) {
		return struct{}{}, handler(ctx, event)
	})
}

func runLocal[E, R any](ctx context.Context, r io.Reader, w io.Writer, handler func(context.Context, E) (R, error)) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading event from stdin: %w", err)
	}

	var event E
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}

	resp, err := handler(ctx, event)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
