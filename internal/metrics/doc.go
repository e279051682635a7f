// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Event bus publish success/error counts per topic
//   - Connector running state per source
//   - Circuit breaker state per source (0=closed, 1=open, 2=half-open)
package metrics
