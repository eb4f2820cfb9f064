// Package main implements the cancel-schedule CLI tool, which deletes the
// pending delivery timer of a scheduled post.
//
// Usage:
//
//	go run ./cmd/tools/cancel-schedule --post=0190b7d2-...
//	go run ./cmd/tools/cancel-schedule --name=0190b7d2-...-scheduled-post
//
// The schedule group is read from SCHEDULE_GROUP_NAME (or .env file via
// godotenv). Deleting a timer that does not exist is reported but exits 0.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	schedulersdk "github.com/aws/aws-sdk-go-v2/service/scheduler"

	"postscheduler/internal/bootstrap"
	"postscheduler/internal/config"
	"postscheduler/internal/external"
	"postscheduler/internal/scheduler"
)

func main() {
	postID := flag.String("post", "", "Post id whose timer should be deleted")
	name := flag.String("name", "", "Explicit schedule name (overrides --post)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	scheduleName, err := resolveName(*postID, *name)
	if err != nil {
		logger.Error("Invalid arguments", "error", err)
		flag.Usage()
		os.Exit(2)
	}

	var cfg config.ScheduleAdminConfig
	if err := config.Load(bootstrap.SecretProvider(), &cfg); err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := bootstrap.AWSConfig(ctx, cfg.CommonConfig)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	client := external.NewSchedulerClient(schedulersdk.NewFromConfig(awsCfg))
	err = client.DeleteSchedule(ctx, cfg.GroupName, scheduleName)
	switch {
	case errors.Is(err, external.ErrScheduleNotFound):
		logger.Warn("Schedule not found", "group", cfg.GroupName, "schedule_name", scheduleName)
	case err != nil:
		logger.Error("Failed to delete schedule", "schedule_name", scheduleName, "error", err)
		os.Exit(1)
	default:
		logger.Info("Schedule deleted", "group", cfg.GroupName, "schedule_name", scheduleName)
	}
}

func resolveName(postID, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if postID == "" {
		return "", errors.New("one of --post or --name is required")
	}
	return scheduler.ScheduleName(postID), nil
}
