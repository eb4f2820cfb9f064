package types

// Telemetry metric names for CloudWatch.
const (
	MetricScheduleCreated    = "ScheduleCreated"
	MetricScheduleDuplicate  = "ScheduleDuplicate"
	MetricScheduleRejected   = "ScheduleRejected"
	MetricWorkflowStarted    = "WorkflowStarted"
	MetricWorkflowFailed     = "WorkflowFailed"
	MetricPostDelivered      = "PostDelivered"
	MetricPostForwarded      = "PostForwarded"
	MetricChangeEventsRouted = "ChangeEventsRouted"

	// Dimension Keys
	DimComponent = "Component"
	DimWorkflow  = "Workflow"
	DimReason    = "Reason"

	// Metric Namespace
	MetricNamespace = "ScheduledPosts"
)
