// Package main implements the seed-post CLI tool, which writes a post
// directly into the post table. The insert flows through the table stream,
// so a scheduled post exercises the whole pipeline end to end.
//
// Usage:
//
//	go run ./cmd/tools/seed-post --user=u1 --content="hello" --in=10m
//	go run ./cmd/tools/seed-post --user=u1 --content="hello" --at=2030-06-15T09:30:00
//	echo '{"content":"hi","userId":"u1","schedulePost":false}' | go run ./cmd/tools/seed-post --file=-
//	go run ./cmd/tools/seed-post --dry-run --user=u1 --content="hello" --in=1h
//
// The tool reads TABLE_NAME from the environment (or .env file via
// godotenv). Schedule times are wall-clock values in --timezone, which
// defaults to the process local zone to match the scheduling engine.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"postscheduler/internal/bootstrap"
	"postscheduler/internal/config"
	"postscheduler/internal/posts"
	"postscheduler/internal/scheduler"
	"postscheduler/internal/types"
)

const atLayout = "2006-01-02T15:04:05"

type options struct {
	content  string
	user     string
	images   stringList
	in       time.Duration
	at       string
	timezone string
	file     string
	dryRun   bool
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var opts options
	flag.StringVar(&opts.content, "content", "", "Post content")
	flag.StringVar(&opts.user, "user", "", "Owning user id")
	flag.Var(&opts.images, "image", "Image URL (repeatable)")
	flag.DurationVar(&opts.in, "in", 0, "Schedule the post this far in the future (e.g. 10m)")
	flag.StringVar(&opts.at, "at", "", "Schedule the post at this wall-clock time ("+atLayout+")")
	flag.StringVar(&opts.timezone, "timezone", "", "IANA zone for --at and --in (default: local)")
	flag.StringVar(&opts.file, "file", "", "Read a JSON PostInput from this path ('-' for stdin)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Print the validated input without writing it")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	in, err := buildInput(opts, os.Stdin, time.Now())
	if err != nil {
		logger.Error("Invalid input", "error", err)
		os.Exit(2)
	}
	if err := posts.ValidateInput(in); err != nil {
		logger.Error("Post rejected", "error", err)
		os.Exit(2)
	}

	if opts.dryRun {
		printJSON(in)
		return
	}

	var cfg config.StoreConfig
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

	repo := posts.NewRepository(dynamodb.NewFromConfig(awsCfg), cfg.TableName)
	post, err := repo.Create(ctx, in)
	if err != nil {
		logger.Error("Failed to create post", "error", err)
		os.Exit(1)
	}

	logger.Info("Post created", "post_id", post.ID, "schedule_name", scheduler.ScheduleName(post.ID))
	printJSON(post)
}

// buildInput assembles a PostInput from a JSON document (--file) or from
// the individual flags.
func buildInput(opts options, stdin io.Reader, now time.Time) (types.PostInput, error) {
	var in types.PostInput

	if opts.file != "" {
		r := stdin
		if opts.file != "-" {
			f, err := os.Open(opts.file)
			if err != nil {
				return in, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&in); err != nil {
			return in, fmt.Errorf("decoding post input: %w", err)
		}
		return in, nil
	}

	in = types.PostInput{
		Content:   opts.content,
		UserID:    opts.user,
		ImageURLs: opts.images,
	}

	loc := time.Local
	if opts.timezone != "" {
		l, err := time.LoadLocation(opts.timezone)
		if err != nil {
			return in, fmt.Errorf("unknown timezone %q: %w", opts.timezone, err)
		}
		loc = l
	}

	switch {
	case opts.at != "" && opts.in != 0:
		return in, errors.New("--at and --in are mutually exclusive")
	case opts.at != "":
		t, err := time.ParseInLocation(atLayout, opts.at, loc)
		if err != nil {
			return in, fmt.Errorf("parsing --at: %w", err)
		}
		s := scheduler.ScheduleFromTime(t, loc)
		in.SchedulePost, in.Schedule = true, &s
	case opts.in > 0:
		s := scheduler.ScheduleFromTime(now.Add(opts.in), loc)
		in.SchedulePost, in.Schedule = true, &s
	case opts.in < 0:
		return in, errors.New("--in must be positive")
	}

	return in, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
