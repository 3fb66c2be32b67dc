package provisioner

import (
	"context"
	"sync"

	"github.com/csakilan/FoundryBackend/template"
)

// CreateCall records one CreateStack submission against the fake.
type CreateCall struct {
	Name     string
	Document *template.Document
	Params   map[string]string
}

type fakePage struct {
	events []StackEvent
	err    error
}

// Fake is a scripted Engine for tests. DescribeEvents replays the
// configured pages in order, one per call, then repeats the final
// page; each page is the stack's full history at that moment,
// newest-first, exactly as the real backend reports it. Error pages
// are consumed the same way so failures can be scripted mid-stream.
// Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	pages   []fakePage
	idx     int
	polls   int
	status  string
	outputs []StackOutput
	creates []CreateCall

	createErr  error
	statusErr  error
	outputsErr error
}

// NewFake returns a fake engine with no event history and status
// CREATE_IN_PROGRESS.
func NewFake() *Fake {
	return &Fake{status: "CREATE_IN_PROGRESS"}
}

// AddPage appends one DescribeEvents response, newest-first.
func (f *Fake) AddPage(events ...StackEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, fakePage{events: events})
}

// AddPageError appends one failing DescribeEvents response.
func (f *Fake) AddPageError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, fakePage{err: err})
}

// SetStatus sets the status DescribeStatus reports.
func (f *Fake) SetStatus(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// SetOutputs sets the outputs DescribeOutputs reports.
func (f *Fake) SetOutputs(outputs ...StackOutput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs = outputs
}

// FailCreate makes every CreateStack call fail with err.
func (f *Fake) FailCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// FailStatus makes every DescribeStatus call fail with err.
func (f *Fake) FailStatus(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
}

// FailOutputs makes every DescribeOutputs call fail with err.
func (f *Fake) FailOutputs(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputsErr = err
}

// Creates returns a copy of every recorded CreateStack call.
func (f *Fake) Creates() []CreateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CreateCall, len(f.creates))
	copy(out, f.creates)
	return out
}

// Polls returns how many times DescribeEvents has been called.
func (f *Fake) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// CreateStack implements Engine.
func (f *Fake) CreateStack(_ context.Context, name string, doc *template.Document,
	params map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, CreateCall{Name: name, Document: doc, Params: params})
	if f.createErr != nil {
		return "", f.createErr
	}
	return "arn:aws:cloudformation:us-east-1:000000000000:stack/" + name, nil
}

// DescribeEvents implements Engine.
func (f *Fake) DescribeEvents(_ context.Context, _ string) ([]StackEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++

	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[f.idx]
	if f.idx < len(f.pages)-1 {
		f.idx++
	}
	if page.err != nil {
		return nil, page.err
	}
	events := make([]StackEvent, len(page.events))
	copy(events, page.events)
	return events, nil
}

// DescribeStatus implements Engine.
func (f *Fake) DescribeStatus(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	return f.status, nil
}

// DescribeOutputs implements Engine.
func (f *Fake) DescribeOutputs(_ context.Context, _ string) ([]StackOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outputsErr != nil {
		return nil, f.outputsErr
	}
	out := make([]StackOutput, len(f.outputs))
	copy(out, f.outputs)
	return out, nil
}
