package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not component-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// Deployment lifecycle metrics
	DeploymentsStarted   prometheus.Counter
	DeploymentsCompleted *prometheus.CounterVec
	DeploymentsFailed    prometheus.Counter
	CompileDuration      prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Service metrics
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "foundry",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foundry",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "foundry",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		// Deployment lifecycle metrics
		DeploymentsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "foundry",
				Subsystem: "deployments",
				Name:      "started_total",
				Help:      "Total number of deployments submitted to the provisioning engine",
			},
		),

		DeploymentsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "foundry",
				Subsystem: "deployments",
				Name:      "completed_total",
				Help:      "Total number of deployments that reached a terminal status",
			},
			[]string{"status"},
		),

		DeploymentsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "foundry",
				Subsystem: "deployments",
				Name:      "failed_total",
				Help:      "Total number of deployments that failed before submission",
			},
		),

		CompileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "foundry",
				Subsystem: "compiler",
				Name:      "duration_seconds",
				Help:      "Canvas compilation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordDeploymentStarted increments the submitted-deployment counter
func (c *Metrics) RecordDeploymentStarted() {
	c.DeploymentsStarted.Inc()
}

// RecordDeploymentCompleted increments the terminal-status counter
func (c *Metrics) RecordDeploymentCompleted(status string) {
	c.DeploymentsCompleted.WithLabelValues(status).Inc()
}

// RecordDeploymentFailed increments the pre-submission failure counter
func (c *Metrics) RecordDeploymentFailed() {
	c.DeploymentsFailed.Inc()
}

// RecordCompileDuration records how long one compilation took
func (c *Metrics) RecordCompileDuration(duration time.Duration) {
	c.CompileDuration.Observe(duration.Seconds())
}
