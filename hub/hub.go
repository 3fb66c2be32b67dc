package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/metric"
	"github.com/csakilan/FoundryBackend/provisioner"
	"github.com/csakilan/FoundryBackend/tracker"
)

// Subscriber is one sink on a deployment's tracking stream. Send must
// be safe to call from the feed's poll goroutine; a failed Send evicts
// the subscriber and never aborts the stream for the others.
type Subscriber interface {
	ID() string
	Send(env Envelope) error
}

// Defaults for the poll loop.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultHoldOpen     = 2 * time.Second
)

// feed is one tracked deployment: its tracker, its poll loop's
// cancellation, and the subscribers attached to it.
type feed struct {
	stackName string
	tracker   *tracker.Tracker
	cancel    context.CancelFunc
	done      chan struct{}

	mu   sync.Mutex
	subs map[string]Subscriber
}

func (f *feed) add(sub Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.ID()] = sub
}

// remove reports whether the subscriber was attached and whether the
// feed is now empty.
func (f *feed) remove(id string) (removed, empty bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; ok {
		delete(f.subs, id)
		removed = true
	}
	return removed, len(f.subs) == 0
}

func (f *feed) snapshot() []Subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Subscriber, 0, len(f.subs))
	for _, sub := range f.subs {
		out = append(out, sub)
	}
	return out
}

// clear detaches every subscriber and returns how many there were.
func (f *feed) clear() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.subs)
	f.subs = make(map[string]Subscriber)
	return n
}

func (f *feed) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Hub multiplexes deployment tracking: one poll loop per stack no
// matter how many subscribers watch it. The first subscriber starts
// the loop, the last one leaving cancels it, and a late joiner gets a
// snapshot of everything the tracker has already seen. All registry
// mutation happens under one mutex so two loops can never start for
// the same stack.
type Hub struct {
	engine   provisioner.Engine
	interval time.Duration
	holdOpen time.Duration
	logger   *slog.Logger
	metrics  *hubMetrics
	core     *metric.Metrics
	now      func() time.Time

	mu    sync.Mutex
	feeds map[string]*feed
}

// Option configures a Hub.
type Option func(*Hub) error

// WithPollInterval sets the delay between poll cycles.
func WithPollInterval(d time.Duration) Option {
	return func(h *Hub) error {
		if d <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Hub", "WithPollInterval",
				"interval must be positive")
		}
		h.interval = d
		return nil
	}
}

// WithHoldOpen sets how long a completed feed lingers so subscribers
// observe the final envelope before the loop stops.
func WithHoldOpen(d time.Duration) Option {
	return func(h *Hub) error {
		if d < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Hub", "WithHoldOpen",
				"hold-open cannot be negative")
		}
		h.holdOpen = d
		return nil
	}
}

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) error {
		if logger != nil {
			h.logger = logger.With("component", "hub")
		}
		return nil
	}
}

// WithMetrics registers hub metrics with the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(h *Hub) error {
		m, err := newHubMetrics(registry)
		if err != nil {
			return err
		}
		h.metrics = m
		if registry != nil {
			h.core = registry.CoreMetrics()
		}
		return nil
	}
}

// New creates a hub polling the given engine.
func New(engine provisioner.Engine, opts ...Option) (*Hub, error) {
	h := &Hub{
		engine:   engine,
		interval: DefaultPollInterval,
		holdOpen: DefaultHoldOpen,
		logger:   slog.Default().With("component", "hub"),
		now:      time.Now,
		feeds:    make(map[string]*feed),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, errors.WrapInvalid(err, "Hub", "New", "apply option")
		}
	}
	return h, nil
}

// Subscribe attaches sub to the stack's tracking stream. The first
// subscriber for a stack creates its tracker and starts the poll
// loop; later ones join the running loop and, if resources are
// already known, immediately receive one initial_state snapshot.
func (h *Hub) Subscribe(stackName string, sub Subscriber) {
	h.mu.Lock()
	f, ok := h.feeds[stackName]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		f = &feed{
			stackName: stackName,
			tracker:   tracker.New(stackName, h.engine),
			cancel:    cancel,
			done:      make(chan struct{}),
			subs:      make(map[string]Subscriber),
		}
		h.feeds[stackName] = f
		h.metrics.recordFeeds(len(h.feeds))
		go h.run(ctx, f)
	}
	f.add(sub)
	h.mu.Unlock()

	h.metrics.recordSubscribers(1)
	h.logger.Info("subscriber joined", "stack", stackName,
		"subscriber", sub.ID(), "subscribers", f.size())

	if resources := f.tracker.Resources(); len(resources) > 0 {
		h.send(f, sub, NewInitialState(f.tracker.Summary(), resources, h.now()))
	}
}

// Unsubscribe detaches a subscriber. Removing the last one cancels the
// stack's poll loop and discards its state.
func (h *Hub) Unsubscribe(stackName, subscriberID string) {
	h.mu.Lock()
	f, ok := h.feeds[stackName]
	if !ok {
		h.mu.Unlock()
		return
	}
	removed, empty := f.remove(subscriberID)
	if empty {
		delete(h.feeds, stackName)
		h.metrics.recordFeeds(len(h.feeds))
		f.cancel()
	}
	h.mu.Unlock()

	if removed {
		h.metrics.recordSubscribers(-1)
		h.logger.Info("subscriber left", "stack", stackName, "subscriber", subscriberID)
	}
}

// ActiveFeeds returns how many deployments are currently tracked.
func (h *Hub) ActiveFeeds() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds)
}

// Close cancels every feed and waits for their loops to stop.
func (h *Hub) Close() {
	h.mu.Lock()
	feeds := make([]*feed, 0, len(h.feeds))
	for _, f := range h.feeds {
		f.cancel()
		feeds = append(feeds, f)
	}
	h.feeds = make(map[string]*feed)
	h.metrics.recordFeeds(0)
	h.mu.Unlock()

	for _, f := range feeds {
		<-f.done
		h.metrics.recordSubscribers(-f.clear())
	}
}

// run is one deployment's poll loop. Each cycle folds new events and
// broadcasts one resource_update per event; terminal status sends a
// stack_complete and stops after a short hold. Transient and
// not-yet-visible fetch failures retry next cycle; anything else is
// surfaced once as an error envelope and ends tracking.
func (h *Hub) run(ctx context.Context, f *feed) {
	defer close(f.done)
	log := h.logger.With("stack", f.stackName)
	log.Info("tracking started")

	for {
		h.metrics.recordPoll()
		events, err := f.tracker.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.IsTransient(err) {
				log.Debug("poll failed, retrying next cycle", "error", err)
			} else {
				log.Error("tracking failed", "error", err)
				h.broadcast(f, NewError("Error tracking deployment: "+err.Error(), nil, h.now()))
				h.drop(f)
				return
			}
		}

		for _, ev := range events {
			h.broadcast(f, NewResourceUpdate(ev, f.tracker.Summary()))
		}

		if f.tracker.Complete() {
			break
		}

		select {
		case <-ctx.Done():
			log.Info("tracking cancelled")
			return
		case <-time.After(h.interval):
		}
	}

	duration, _ := f.tracker.Duration()
	h.broadcast(f, NewStackComplete(f.stackName, f.tracker.Status(), f.tracker.Outputs(ctx),
		duration, h.now()))
	if h.core != nil {
		h.core.RecordDeploymentCompleted(f.tracker.Status())
	}
	log.Info("deployment complete", "status", f.tracker.Status(), "duration", duration)

	select {
	case <-ctx.Done():
	case <-time.After(h.holdOpen):
	}
	h.drop(f)
}

// drop removes an ended feed from the registry unless a newer feed
// already took its key.
func (h *Hub) drop(f *feed) {
	h.mu.Lock()
	if h.feeds[f.stackName] == f {
		delete(h.feeds, f.stackName)
		h.metrics.recordFeeds(len(h.feeds))
	}
	h.mu.Unlock()
	f.cancel()
	h.metrics.recordSubscribers(-f.clear())
}

func (h *Hub) broadcast(f *feed, env Envelope) {
	for _, sub := range f.snapshot() {
		h.send(f, sub, env)
	}
}

// send delivers one envelope; a failure evicts that subscriber only.
func (h *Hub) send(f *feed, sub Subscriber, env Envelope) {
	if err := sub.Send(env); err != nil {
		h.metrics.recordSendFailure()
		h.logger.Warn("evicting subscriber", "stack", f.stackName,
			"subscriber", sub.ID(), "error", err)
		h.Unsubscribe(f.stackName, sub.ID())
		return
	}
	h.metrics.recordSend(env.Type)
}
