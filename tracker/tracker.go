package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/provisioner"
)

// stackResourceType marks the stack's own entry in its event stream.
// Stack-level status, start and end times key off events whose logical
// id equals the stack name and whose type is this literal.
const stackResourceType = "AWS::CloudFormation::Stack"

// terminalStatuses are the stack statuses after which no further
// progress happens without new user action.
var terminalStatuses = map[string]struct{}{
	"CREATE_COMPLETE":          {},
	"CREATE_FAILED":            {},
	"UPDATE_COMPLETE":          {},
	"UPDATE_FAILED":            {},
	"DELETE_COMPLETE":          {},
	"DELETE_FAILED":            {},
	"ROLLBACK_COMPLETE":        {},
	"ROLLBACK_FAILED":          {},
	"UPDATE_ROLLBACK_COMPLETE": {},
	"UPDATE_ROLLBACK_FAILED":   {},
}

// IsTerminalStatus reports whether a stack status is terminal.
func IsTerminalStatus(status string) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// ResourceStatus is the latest-known projection of one resource,
// overwritten as newer events for it arrive.
type ResourceStatus struct {
	LogicalID  string    `json:"logicalId"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Reason     string    `json:"statusReason"`
	PhysicalID string    `json:"physicalId"`
	Timestamp  time.Time `json:"timestamp"`
}

// StackSummary is the aggregate deployment state, recomputed on demand
// from the resource cache. Progress counts completed and failed
// resources both as done; the percentage says how much of the stack
// has stopped moving, not how much succeeded.
type StackSummary struct {
	Name                string `json:"name"`
	Status              string `json:"status"`
	TotalResources      int    `json:"totalResources"`
	CompletedResources  int    `json:"completedResources"`
	UpdatedResources    int    `json:"updatedResources"`
	InProgressResources int    `json:"inProgressResources"`
	FailedResources     int    `json:"failedResources"`
	Progress            int    `json:"progress"`
}

// Tracker folds one deployment's raw event stream into per-resource
// state. Events are deduplicated by event id, so re-polling the full
// history each cycle is idempotent. Safe for concurrent use; the poll
// loop writes while late-joining subscribers read snapshots.
type Tracker struct {
	stackName string
	engine    provisioner.Engine
	now       func() time.Time

	mu          sync.Mutex
	seen        map[string]struct{}
	statuses    map[string]*ResourceStatus
	order       []string
	stackStatus string
	startTime   time.Time
	endTime     time.Time
}

// New creates a tracker for one stack.
func New(stackName string, engine provisioner.Engine) *Tracker {
	return &Tracker{
		stackName: stackName,
		engine:    engine,
		now:       time.Now,
		seen:      make(map[string]struct{}),
		statuses:  make(map[string]*ResourceStatus),
	}
}

// StackName returns the tracked stack's name.
func (t *Tracker) StackName() string {
	return t.stackName
}

// Poll fetches the stack's current event history, folds the events not
// seen before into the cache and returns them in chronological order.
// A stack the engine does not know yet means nothing to report: Poll
// returns no events and no error, and the next cycle tries again.
func (t *Tracker) Poll(ctx context.Context) ([]provisioner.StackEvent, error) {
	history, err := t.engine.DescribeEvents(ctx, t.stackName)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// The engine reports newest-first; collect unseen events and
	// reverse so subscribers observe them oldest-first.
	fresh := make([]provisioner.StackEvent, 0, len(history))
	for _, ev := range history {
		if _, ok := t.seen[ev.EventID]; ok {
			continue
		}
		t.seen[ev.EventID] = struct{}{}
		fresh = append(fresh, ev)
	}
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}

	for _, ev := range fresh {
		t.fold(ev)
	}
	return fresh, nil
}

// fold applies one event to the cache. Caller holds the mutex.
func (t *Tracker) fold(ev provisioner.StackEvent) {
	if ev.LogicalID == "" || ev.Type == "" {
		return
	}

	if _, known := t.statuses[ev.LogicalID]; !known {
		t.order = append(t.order, ev.LogicalID)
	}
	t.statuses[ev.LogicalID] = &ResourceStatus{
		LogicalID:  ev.LogicalID,
		Type:       ev.Type,
		Status:     ev.Status,
		Reason:     ev.Reason,
		PhysicalID: ev.PhysicalID,
		Timestamp:  ev.Timestamp,
	}

	if ev.LogicalID == t.stackName && ev.Type == stackResourceType {
		t.stackStatus = ev.Status
		if strings.HasSuffix(ev.Status, "IN_PROGRESS") && t.startTime.IsZero() {
			t.startTime = ev.Timestamp
		}
		if IsTerminalStatus(ev.Status) {
			t.endTime = ev.Timestamp
		}
	}
}

// Status returns the stack's own last-known status, or UNKNOWN before
// the first stack-level event arrives.
func (t *Tracker) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *Tracker) statusLocked() string {
	if t.stackStatus == "" {
		return "UNKNOWN"
	}
	return t.stackStatus
}

// Complete reports whether the stack has reached a terminal status.
func (t *Tracker) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return IsTerminalStatus(t.stackStatus)
}

// Summary recomputes the aggregate deployment state from the cache.
func (t *Tracker) Summary() StackSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := StackSummary{
		Name:           t.stackName,
		Status:         t.statusLocked(),
		TotalResources: len(t.order),
	}
	for _, lid := range t.order {
		status := t.statuses[lid].Status
		switch {
		case strings.HasSuffix(status, "_COMPLETE"):
			s.CompletedResources++
			if strings.HasPrefix(status, "UPDATE") {
				s.UpdatedResources++
			}
		case strings.HasSuffix(status, "_IN_PROGRESS"):
			s.InProgressResources++
		case strings.HasSuffix(status, "_FAILED"):
			s.FailedResources++
		}
	}
	if s.TotalResources > 0 {
		s.Progress = (s.CompletedResources + s.FailedResources) * 100 / s.TotalResources
	}
	return s
}

// Resources returns the cached resource projections in first-seen
// order.
func (t *Tracker) Resources() []ResourceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ResourceStatus, 0, len(t.order))
	for _, lid := range t.order {
		out = append(out, *t.statuses[lid])
	}
	return out
}

// Duration formats the deployment's elapsed time as "4m 15s" (or
// "42s" under a minute). Before completion it measures against the
// current time; before the first stack event it reports false.
func (t *Tracker) Duration() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.startTime.IsZero() {
		return "", false
	}
	end := t.endTime
	if end.IsZero() {
		end = t.now()
	}

	total := int(end.Sub(t.startTime).Seconds())
	minutes := total / 60
	seconds := total % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds), true
	}
	return fmt.Sprintf("%ds", seconds), true
}

// Outputs fetches the stack's declared outputs, used once the stack
// completes. On failure it returns an empty list and the completion
// envelope goes out without outputs.
func (t *Tracker) Outputs(ctx context.Context) []provisioner.StackOutput {
	outputs, err := t.engine.DescribeOutputs(ctx, t.stackName)
	if err != nil {
		return nil
	}
	return outputs
}
