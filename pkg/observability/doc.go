// Package observability provides structured logging and Prometheus metrics.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("tenant_id", tenantID).Info("context loaded")
//
// Request-scoped logging:
//
//	logger := observability.FromContext(ctx)
//	logger.WithError(err).Warn("role lookup failed, degrading to no role")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.AuthzDecisionsTotal.WithLabelValues("permission", "denied").Inc()
//
// Expose the scrape endpoint:
//
//	mux := http.NewServeMux()
//	observability.RegisterMetricsEndpoint(mux, registry)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request ID propagation
package observability
