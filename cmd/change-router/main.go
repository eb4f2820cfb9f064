// Package main is the entrypoint for the Change Router Lambda.
//
// It is attached to the post table's DynamoDB stream. Every INSERT of a post
// entity is republished to the event bus as a SchedulePostCreated event.
// Records that could not be published are returned as batch item failures so
// the stream retries only those.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"postscheduler/internal/bootstrap"
	"postscheduler/internal/config"
	"postscheduler/internal/external"
	"postscheduler/internal/router"
)

const functionName = "change-router"

func main() {
	var cfg config.ChangeRouterConfig
	if err := config.Load(bootstrap.SecretProvider(), &cfg); err != nil {
		slog.Error("Failed to load configuration", "function", functionName, "error", err)
		os.Exit(1)
	}

	logger := bootstrap.Logger(cfg.CommonConfig, functionName)
	logger.Info("Change router initializing (cold start)", "build", cfg.Build.String())

	awsCfg, err := bootstrap.AWSConfig(context.Background(), cfg.CommonConfig)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	r := router.NewRouter(
		router.Config{
			Source:      cfg.Source,
			DetailType:  cfg.DetailType,
			Concurrency: cfg.PublishConcurrency,
		},
		external.NewEventBusClient(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName),
		bootstrap.Metrics(cfg.CommonConfig, awsCfg, logger),
		logger,
	)

	logger.Info("Change router ready", "bus", cfg.EventBusName, "source", cfg.Source)

	bootstrap.Start(cfg.CommonConfig, logger, r.Handle)
}
