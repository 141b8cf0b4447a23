// Package observability provides structured logging, Prometheus metrics,
// and health checks for the Pathway backend.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("tenant_id", tenantID).Info("scope resolved")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ScopeResolutionsTotal.WithLabelValues("site_membership").Inc()
//
// # Health Checks
//
// Configure the health checker with the backing stores:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
package observability
