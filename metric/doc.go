// Package metric provides Prometheus-based metrics collection and an HTTP
// server for resourcefactory observability.
//
// The package offers a centralized metrics registry managing both the
// factory's own cache/loader/reload counters and metrics that embedding
// services register for themselves. It includes an HTTP server exposing
// metrics in Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: cache/loader/reload metrics automatically registered (Metrics type)
//  2. Service Registry: extensible registration for caller-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with health checks (Server type)
//
// This separates the factory's own instrumentation from metrics an
// embedding application registers through the same registry, while
// exposing both on one Prometheus endpoint.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordCacheHit()
//	core.SetResourcesLoaded(42)
//
// The metrics server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health.
//
// # Core Metrics
//
//   - resourcefactory_cache_hits_total / _misses_total
//   - resourcefactory_cache_resources_loaded (gauge)
//   - resourcefactory_loader_load_duration_seconds{backend}
//   - resourcefactory_reload_total{result}
//   - resourcefactory_registry_types_registered
//   - resourcefactory_reload_subscribers
//
// # Caller-Specific Metrics
//
// Callers register custom metrics through the registry:
//
//	requestCounter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "api_requests_total",
//	    Help: "Total number of API requests",
//	})
//	err := registry.RegisterCounter("api-service", "api_requests_total", requestCounter)
//
// # HTTP Server
//
// The metrics server provides three endpoints:
//
//   - GET / - HTML page with links to metrics and health endpoints
//   - GET /metrics - Prometheus-formatted metrics (default path, configurable)
//   - GET /health - plain-text health check response
//
// # MetricsRegistrar Interface
//
// Callers implement against MetricsRegistrar for dependency injection and
// testing with a mock registrar.
//
// # Thread Safety
//
// All registry operations are thread-safe: registration uses mutex
// protection, metric recording is lock-free (Prometheus guarantee), and
// CoreMetrics()/PrometheusRegistry() are safe for concurrent access.
package metric
