// Package main is the entrypoint for the Workflow Router Lambda behind the
// startWorkflow GraphQL mutation.
//
// The resolver returns true when an execution was started. Failures are
// logged and reported as false; they never surface as resolver errors.
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

const functionName = "start-workflow"

func main() {
	var cfg config.WorkflowConfig
	if err := config.Load(bootstrap.SecretProvider(), &cfg); err != nil {
		slog.Error("Failed to load configuration", "function", functionName, "error", err)
		os.Exit(1)
	}

	logger := bootstrap.Logger(cfg.CommonConfig, functionName)
	logger.Info("Workflow router initializing (cold start)", "build", cfg.Build.String())

	awsCfg, err := bootstrap.AWSConfig(context.Background(), cfg.CommonConfig)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	if cfg.WithContextARN == "" || cfg.WithoutContextARN == "" {
		logger.Warn("State machine ARNs incomplete; requests will be rejected",
			"with_context_set", cfg.WithContextARN != "",
			"without_context_set", cfg.WithoutContextARN != "",
		)
	}

	router := workflow.NewRouter(
		workflow.Config{
			WithContextARN:    cfg.WithContextARN,
			WithoutContextARN: cfg.WithoutContextARN,
		},
		external.NewWorkflowClient(sfn.NewFromConfig(awsCfg)),
		bootstrap.Metrics(cfg.CommonConfig, awsCfg, logger),
		logger,
	)

	bootstrap.Start(cfg.CommonConfig, logger, workflow.Handler(router.StartWorkflow))
}
