package hub

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/csakilan/FoundryBackend/metric"
)

// hubMetrics holds Prometheus metrics for the broadcast hub.
type hubMetrics struct {
	activeFeeds       prometheus.Gauge
	activeSubscribers prometheus.Gauge
	pollCycles        prometheus.Counter
	envelopesSent     *prometheus.CounterVec // by envelope type
	sendFailures      prometheus.Counter
}

// newHubMetrics creates and registers hub metrics with the provided
// registry. A nil registry disables metrics.
func newHubMetrics(registry *metric.MetricsRegistry) (*hubMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &hubMetrics{
		activeFeeds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "foundry",
			Subsystem: "hub",
			Name:      "active_feeds",
			Help:      "Deployments currently being polled",
		}),
		activeSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "foundry",
			Subsystem: "hub",
			Name:      "active_subscribers",
			Help:      "Subscribers currently attached across all feeds",
		}),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foundry",
			Subsystem: "hub",
			Name:      "poll_cycles_total",
			Help:      "Total provisioning-engine poll cycles",
		}),
		envelopesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foundry",
			Subsystem: "hub",
			Name:      "envelopes_sent_total",
			Help:      "Total envelopes delivered to subscribers",
		}, []string{"type"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foundry",
			Subsystem: "hub",
			Name:      "send_failures_total",
			Help:      "Total subscriber sends that failed and evicted the subscriber",
		}),
	}

	if err := registry.RegisterGauge("hub", "active_feeds", m.activeFeeds); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("hub", "active_subscribers", m.activeSubscribers); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("hub", "poll_cycles", m.pollCycles); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("hub", "envelopes_sent", m.envelopesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("hub", "send_failures", m.sendFailures); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *hubMetrics) recordFeeds(n int) {
	if m == nil {
		return
	}
	m.activeFeeds.Set(float64(n))
}

func (m *hubMetrics) recordSubscribers(delta int) {
	if m == nil {
		return
	}
	m.activeSubscribers.Add(float64(delta))
}

func (m *hubMetrics) recordPoll() {
	if m == nil {
		return
	}
	m.pollCycles.Inc()
}

func (m *hubMetrics) recordSend(envelopeType string) {
	if m == nil {
		return
	}
	m.envelopesSent.WithLabelValues(envelopeType).Inc()
}

func (m *hubMetrics) recordSendFailure() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}
