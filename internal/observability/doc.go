// Package observability provides the gateway's structured logging and
// Prometheus metrics.
//
// Logging is zap-based, JSON in production and console in development,
// with optional size-rotated file output. Metrics live on a private
// registry exposed through Handler at /metrics.
package observability
