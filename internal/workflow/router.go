// Package workflow starts content-generation state machines on behalf of
// GraphQL mutations. Every entry point answers with a plain boolean: errors
// are logged and reported as false, never returned to the resolver.
package workflow

import (
	"context"
	"encoding/json"
	"log/slog"

	"postscheduler/internal/telemetry"
	"postscheduler/internal/types"
)

const component = "workflow-router"

// Workflow names used as the Workflow metric dimension.
const (
	WorkflowWithContext    = "post-with-context"
	WorkflowWithoutContext = "post-without-context"
	WorkflowTextToVideo    = "text-to-video"
)

// Starter starts one execution of a state machine and returns its ARN.
type Starter interface {
	StartExecution(ctx context.Context, stateMachineARN, input string) (string, error)
}

// Config holds the state machine ARNs. Empty values are allowed at startup
// and reported when a request needs them.
type Config struct {
	WithContextARN    string
	WithoutContextARN string
	TextToVideoARN    string
}

// Router selects and starts workflows.
type Router struct {
	cfg     Config
	starter Starter
	metrics telemetry.Metrics
	logger  *slog.Logger
}

// NewRouter wires a Router. A nil metrics sink disables metrics.
func NewRouter(cfg Config, starter Starter, metrics telemetry.Metrics, logger *slog.Logger) *Router {
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Router{cfg: cfg, starter: starter, metrics: metrics, logger: logger}
}

// generationPayload is the execution input: the full request under "input".
type generationPayload struct {
	Input types.GenerationInput `json:"input"`
}

// StartWorkflow starts the knowledge-base workflow when in.UseKB is set and
// the plain workflow otherwise. Both ARNs must be configured.
func (r *Router) StartWorkflow(ctx context.Context, in types.GenerationInput) bool {
	log := types.InvocationLogger(ctx, r.logger)

	if r.cfg.WithContextARN == "" || r.cfg.WithoutContextARN == "" {
		log.ErrorContext(ctx, "state machine ARNs are not configured",
			"with_context_configured", r.cfg.WithContextARN != "",
			"without_context_configured", r.cfg.WithoutContextARN != "",
		)
		return false
	}

	arn, name := r.cfg.WithoutContextARN, WorkflowWithoutContext
	if in.UseKB {
		arn, name = r.cfg.WithContextARN, WorkflowWithContext
	}

	return r.start(ctx, log, name, arn, generationPayload{Input: in})
}

// StartTextToVideo starts the text-to-video workflow with in as its input.
func (r *Router) StartTextToVideo(ctx context.Context, in types.TextToVideoInput) bool {
	log := types.InvocationLogger(ctx, r.logger)

	if r.cfg.TextToVideoARN == "" {
		log.ErrorContext(ctx, "TEXT_TO_VIDEO_STATE_MACHINE_ARN is not configured")
		return false
	}

	return r.start(ctx, log, WorkflowTextToVideo, r.cfg.TextToVideoARN, in)
}

func (r *Router) start(ctx context.Context, log *slog.Logger, name, arn string, payload any) bool {
	input, err := json.Marshal(payload)
	if err != nil {
		log.ErrorContext(ctx, "failed to encode workflow input", "workflow", name, "error", err)
		r.metrics.Count(ctx, types.MetricWorkflowFailed, 1,
			telemetry.Component(component), telemetry.Workflow(name))
		return false
	}

	log.InfoContext(ctx, "starting workflow", "workflow", name, "workflow_arn", arn, "input", string(input))

	execARN, err := r.starter.StartExecution(ctx, arn, string(input))
	if err != nil {
		log.ErrorContext(ctx, "error starting workflow execution",
			"workflow", name,
			"workflow_arn", arn,
			"error", err,
			"code", types.CodeOf(err),
		)
		r.metrics.Count(ctx, types.MetricWorkflowFailed, 1,
			telemetry.Component(component), telemetry.Workflow(name))
		return false
	}

	log.InfoContext(ctx, "workflow started", "workflow", name, "execution_arn", execARN)
	r.metrics.Count(ctx, types.MetricWorkflowStarted, 1,
		telemetry.Component(component), telemetry.Workflow(name))
	return true
}
