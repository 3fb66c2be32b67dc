package provisioner

import (
	"context"
	"time"

	"github.com/csakilan/FoundryBackend/template"
)

// StackEvent is one change event emitted by the provisioning engine
// while it applies a document. EventID is unique per emission; the
// engine returns history newest-first.
type StackEvent struct {
	EventID    string
	LogicalID  string
	Type       string
	Status     string
	Reason     string
	PhysicalID string
	Timestamp  time.Time
}

// StackOutput is one declared output of an applied stack.
type StackOutput struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

// Engine is the provisioning backend consumed by the deployer and the
// deployment tracker. Implementations map backend-specific failures
// onto the shared error classes; a stack the backend has never heard
// of surfaces as ErrStackNotFound.
type Engine interface {
	// CreateStack submits a compiled document under the given stack
	// name and returns the backend's stack handle.
	CreateStack(ctx context.Context, name string, doc *template.Document, params map[string]string) (string, error)

	// DescribeEvents returns the stack's full current event history,
	// newest-first.
	DescribeEvents(ctx context.Context, name string) ([]StackEvent, error)

	// DescribeStatus returns the stack's current status literal.
	DescribeStatus(ctx context.Context, name string) (string, error)

	// DescribeOutputs returns the stack's declared outputs. Stacks
	// still in progress may have none.
	DescribeOutputs(ctx context.Context, name string) ([]StackOutput, error)
}
