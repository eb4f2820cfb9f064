package external

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/sony/gobreaker/v2"

	"postscheduler/internal/types"
)

// StepFunctionsAPI is the subset of the Step Functions client used here.
type StepFunctionsAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// WorkflowClient starts state machine executions. Each call is a single
// attempt; the breaker only short-circuits while Step Functions is failing.
type WorkflowClient struct {
	api     StepFunctionsAPI
	breaker *gobreaker.CircuitBreaker[string]
}

// NewWorkflowClient wraps api with the default breaker.
func NewWorkflowClient(api StepFunctionsAPI) *WorkflowClient {
	return &WorkflowClient{
		api:     api,
		breaker: newBreaker[string](DefaultBreakerSettings("step-functions")),
	}
}

// StartExecution starts stateMachineARN with input and returns the execution
// ARN. No execution name is supplied, so every call starts a new execution.
func (c *WorkflowClient) StartExecution(ctx context.Context, stateMachineARN, input string) (string, error) {
	arn, err := c.breaker.Execute(func() (string, error) {
		out, err := c.api.StartExecution(ctx, &sfn.StartExecutionInput{
			StateMachineArn: aws.String(stateMachineARN),
			Input:           aws.String(input),
		})
		if err != nil {
			return "", err
		}
		return aws.ToString(out.ExecutionArn), nil
	})
	if err != nil {
		return "", mapUpstreamError(types.ErrCodeUpstreamWorkflow,
			fmt.Sprintf("failed to start execution of %s", stateMachineARN), err)
	}
	return arn, nil
}
