// Package main is the entrypoint for the Delivery Handler Lambda, the target
// of every one-time timer created by the scheduling engine. When
// DELIVERY_QUEUE_URL is set, each delivered post is forwarded to that queue.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"postscheduler/internal/bootstrap"
	"postscheduler/internal/config"
	"postscheduler/internal/delivery"
	"postscheduler/internal/queue"
)

const functionName = "send-posts"

func main() {
	var cfg config.DeliveryConfig
	if err := config.Load(bootstrap.SecretProvider(), &cfg); err != nil {
		slog.Error("Failed to load configuration", "function", functionName, "error", err)
		os.Exit(1)
	}

	logger := bootstrap.Logger(cfg.CommonConfig, functionName)
	logger.Info("Delivery handler initializing (cold start)", "build", cfg.Build.String())

	awsCfg, err := bootstrap.AWSConfig(context.Background(), cfg.CommonConfig)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	var opts []delivery.Option
	if cfg.QueueURL != "" {
		outbox := queue.NewOutbox(sqs.NewFromConfig(awsCfg), cfg.QueueURL, logger)
		opts = append(opts, delivery.WithForwarder(outbox))
		logger.Info("Forwarding delivered posts", "queue_url", cfg.QueueURL)
	}

	handler := delivery.NewHandler(bootstrap.Metrics(cfg.CommonConfig, awsCfg, logger), logger, opts...)

	bootstrap.StartNoResult[json.RawMessage](cfg.CommonConfig, logger, handler.Invoke)
}
