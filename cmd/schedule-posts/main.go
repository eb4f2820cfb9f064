// Package main is the entrypoint for the Scheduling Engine Lambda.
//
// It consumes SchedulePostCreated events from the event bus and registers a
// one-time EventBridge Scheduler timer that invokes the send-posts function
// at the post's scheduled minute.
//
// This file handles dependency wiring (Cold Start) and delegates all business
// logic to the internal/scheduler package.
package main

import (
	"context"
	"log/slog"
	"os"

	schedulersdk "github.com/aws/aws-sdk-go-v2/service/scheduler"

	"postscheduler/internal/bootstrap"
	"postscheduler/internal/config"
	"postscheduler/internal/external"
	"postscheduler/internal/scheduler"
)

const functionName = "schedule-posts"

func main() {
	var cfg config.SchedulerConfig
	if err := config.Load(bootstrap.SecretProvider(), &cfg); err != nil {
		slog.Error("Failed to load configuration", "function", functionName, "error", err)
		os.Exit(1)
	}

	logger := bootstrap.Logger(cfg.CommonConfig, functionName)
	logger.Info("Scheduling engine initializing (cold start)", "build", cfg.Build.String())

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid schedule timezone", "error", err)
		os.Exit(1)
	}

	awsCfg, err := bootstrap.AWSConfig(context.Background(), cfg.CommonConfig)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	engine := scheduler.NewEngine(
		scheduler.Config{
			GroupName: cfg.GroupName,
			RoleARN:   cfg.RoleARN,
			TargetARN: cfg.TargetARN,
		},
		external.NewSchedulerClient(schedulersdk.NewFromConfig(awsCfg)),
		bootstrap.Metrics(cfg.CommonConfig, awsCfg, logger),
		logger,
		scheduler.WithLocation(loc),
	)

	logger.Info("Scheduling engine ready",
		"group", cfg.GroupName,
		"target", cfg.TargetARN,
		"timezone", loc.String(),
	)

	bootstrap.StartNoResult(cfg.CommonConfig, logger, engine.HandleEvent)
}
