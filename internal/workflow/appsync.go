package workflow

import (
	"context"
	"encoding/json"
)

// ResolverEvent is the direct Lambda resolver payload AppSync sends for a
// mutation. Only the arguments are used.
type ResolverEvent[T any] struct {
	Arguments struct {
		Input T `json:"input"`
	} `json:"arguments"`
	Identity json.RawMessage `json:"identity,omitempty"`
	Info     struct {
		FieldName      string `json:"fieldName"`
		ParentTypeName string `json:"parentTypeName"`
	} `json:"info"`
}

// Handler adapts a Router method to the Lambda resolver signature. The
// returned error is always nil; failure is expressed as false.
func Handler[T any](start func(context.Context, T) bool) func(context.Context, ResolverEvent[T]) (bool, error) {
	return func(ctx context.Context, event ResolverEvent[T]) (bool, error) {
		return start(ctx, event.Arguments.Input), nil
	}
}
