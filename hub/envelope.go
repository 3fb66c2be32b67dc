package hub

import (
	"time"

	"github.com/csakilan/FoundryBackend/provisioner"
	"github.com/csakilan/FoundryBackend/tracker"
)

// Envelope types, the discriminator carried in Envelope.Type.
const (
	TypeResourceUpdate = "resource_update"
	TypeStackComplete  = "stack_complete"
	TypeError          = "error"
	TypeInitialState   = "initial_state"
)

// EventResource is the per-event resource block of a resource_update.
// Progress repeats the stack-level percentage so a client rendering
// only the resource line still has it.
type EventResource struct {
	LogicalID    string `json:"logicalId"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	StatusReason string `json:"statusReason"`
	PhysicalID   string `json:"physicalId"`
	Progress     int    `json:"progress"`
}

// CompleteStack is the stack block of a stack_complete envelope.
type CompleteStack struct {
	Name    string                    `json:"name"`
	Status  string                    `json:"status"`
	Outputs []provisioner.StackOutput `json:"outputs"`
}

// ErrorResource optionally names the resource an error envelope is
// about.
type ErrorResource struct {
	LogicalID string `json:"logicalId"`
	Type      string `json:"type"`
}

// Envelope is one JSON message on the tracking stream. Exactly one
// shape per Type; unused fields are omitted from the wire form.
type Envelope struct {
	Type      string                   `json:"type"`
	Timestamp string                   `json:"timestamp"`
	Resource  any                      `json:"resource,omitempty"`
	Stack     any                      `json:"stack,omitempty"`
	Resources []tracker.ResourceStatus `json:"resources,omitempty"`
	Duration  string                   `json:"duration,omitempty"`
	Message   string                   `json:"message,omitempty"`
}

// NewResourceUpdate formats one provisioning event together with the
// stack summary current at fold time. The envelope timestamp is the
// event's own.
func NewResourceUpdate(ev provisioner.StackEvent, summary tracker.StackSummary) Envelope {
	return Envelope{
		Type:      TypeResourceUpdate,
		Timestamp: ev.Timestamp.Format(time.RFC3339),
		Resource: EventResource{
			LogicalID:    ev.LogicalID,
			Type:         ev.Type,
			Status:       ev.Status,
			StatusReason: ev.Reason,
			PhysicalID:   ev.PhysicalID,
			Progress:     summary.Progress,
		},
		Stack: summary,
	}
}

// NewStackComplete formats the terminal envelope. An unknown duration
// renders as "N/A".
func NewStackComplete(name, status string, outputs []provisioner.StackOutput,
	duration string, at time.Time) Envelope {
	if duration == "" {
		duration = "N/A"
	}
	if outputs == nil {
		outputs = []provisioner.StackOutput{}
	}
	return Envelope{
		Type:      TypeStackComplete,
		Timestamp: at.Format(time.RFC3339),
		Stack:     CompleteStack{Name: name, Status: status, Outputs: outputs},
		Duration:  duration,
	}
}

// NewError formats a tracking failure. resource may be nil.
func NewError(message string, resource *ErrorResource, at time.Time) Envelope {
	env := Envelope{
		Type:      TypeError,
		Timestamp: at.Format(time.RFC3339),
		Message:   message,
	}
	if resource != nil {
		env.Resource = *resource
	}
	return env
}

// NewInitialState formats the catch-up snapshot a late joiner receives
// when the cache already holds resources.
func NewInitialState(summary tracker.StackSummary, resources []tracker.ResourceStatus,
	at time.Time) Envelope {
	return Envelope{
		Type:      TypeInitialState,
		Timestamp: at.Format(time.RFC3339),
		Stack:     summary,
		Resources: resources,
	}
}
