// Package main is the entrypoint for the text-to-video resolver Lambda. It
// starts the text-to-video state machine with the request arguments as input.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"postscheduler/internal/bootstrap"
	"postscheduler/internal/config"
	"postscheduler/internal/external"
	"postscheduler/internal/workflow"
)

const functionName = "start-text-to-video"

func main() {
	var cfg config.WorkflowConfig
	if err := config.Load(bootstrap.SecretProvider(), &cfg); err != nil {
		slog.Error("Failed to load configuration", "function", functionName, "error", err)
		os.Exit(1)
	}

	logger := bootstrap.Logger(cfg.CommonConfig, functionName)
	logger.Info("Text-to-video router initializing (cold start)", "build", cfg.Build.String())

	awsCfg, err := bootstrap.AWSConfig(context.Background(), cfg.CommonConfig)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	router := workflow.NewRouter(
		workflow.Config{TextToVideoARN: cfg.TextToVideoARN},
		external.NewWorkflowClient(sfn.NewFromConfig(awsCfg)),
		bootstrap.Metrics(cfg.CommonConfig, awsCfg, logger),
		logger,
	)

	bootstrap.Start(cfg.CommonConfig, logger, workflow.Handler(router.StartTextToVideo))
}
