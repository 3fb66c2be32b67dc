package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/csakilan/FoundryBackend/metric"
)

// gatewayMetrics holds Prometheus metrics for the HTTP surface.
type gatewayMetrics struct {
	requests        *prometheus.CounterVec   // by route template and status code
	requestDuration *prometheus.HistogramVec // by route template
	trackingClients prometheus.Gauge
}

// newGatewayMetrics creates and registers gateway metrics with the
// provided registry. A nil registry disables metrics.
func newGatewayMetrics(registry *metric.MetricsRegistry) (*gatewayMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &gatewayMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foundry",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foundry",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		trackingClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "foundry",
			Subsystem: "gateway",
			Name:      "tracking_clients",
			Help:      "WebSocket tracking clients currently connected",
		}),
	}

	if err := registry.RegisterCounterVec("gateway", "requests", m.requests); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("gateway", "request_duration", m.requestDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("gateway", "tracking_clients", m.trackingClients); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *gatewayMetrics) recordRequest(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *gatewayMetrics) recordTrackingClient(delta int) {
	if m == nil {
		return
	}
	m.trackingClients.Add(float64(delta))
}
