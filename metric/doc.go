// Package metric provides Prometheus-based metrics collection and HTTP server
// for Foundry platform monitoring and observability.
//
// The package offers a centralized metrics registry managing both core platform
// metrics (service status, deployment lifecycle, compilation) and custom
// component-specific metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Platform-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This separates infrastructure concerns (core metrics) from application
// concerns (component-specific metrics) while providing a unified metrics
// endpoint for monitoring systems.
//
// # Basic Usage
//
// Setting up metrics collection and HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	// Record core platform metrics
//	coreMetrics := registry.CoreMetrics()
//	coreMetrics.RecordServiceStatus("gateway", 2)
//	coreMetrics.RecordDeploymentStarted()
//
// The metrics server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
// The package automatically registers core platform metrics tracking:
//
//   - Service lifecycle: service_status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)
//   - Deployment lifecycle: deployments_started_total, deployments_completed_total, deployments_failed_total
//   - Compilation performance: compiler_duration_seconds
//   - Error tracking: errors_total
//   - Health checks: health_status
//
// Access core metrics through the registry:
//
//	coreMetrics := registry.CoreMetrics()
//
//	// Deployment lifecycle tracking
//	coreMetrics.RecordDeploymentStarted()
//	coreMetrics.RecordDeploymentCompleted("CREATE_COMPLETE")
//	coreMetrics.RecordDeploymentFailed()
//
//	// Compilation timing
//	coreMetrics.RecordCompileDuration(12 * time.Millisecond)
//
//	// Error tracking
//	coreMetrics.RecordError("deployer", "validation")
//
// # Component-Specific Metrics
//
// Components register their own metrics through the registry. The
// convention across the codebase is a small unexported metrics struct
// per component whose constructor takes the registry and returns nil
// metrics when the registry is nil (metrics disabled):
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "foundry",
//	    Subsystem: "hub",
//	    Name:      "poll_cycles_total",
//	    Help:      "Total provisioning-engine poll cycles",
//	})
//	err := registry.RegisterCounter("hub", "poll_cycles_total", counter)
//
// Vector metrics follow the same pattern:
//
//	envelopesVec := prometheus.NewCounterVec(
//	    prometheus.CounterOpts{
//	        Namespace: "foundry",
//	        Subsystem: "hub",
//	        Name:      "envelopes_sent_total",
//	        Help:      "Envelopes delivered to subscribers by type",
//	    },
//	    []string{"type"},
//	)
//	err = registry.RegisterCounterVec("hub", "envelopes_sent_total", envelopesVec)
//
// Registration rejects duplicate (component, metric) pairs and surfaces
// Prometheus-level name conflicts, so two components can never silently
// fight over one time series.
//
// # Runtime Metrics
//
// NewMetricsRegistry also registers the standard Go runtime and process
// collectors, so goroutine counts, GC pauses and file descriptor usage
// ship alongside platform metrics without extra wiring.
package metric
