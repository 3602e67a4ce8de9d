// Package metrics defines the Prometheus collectors exported by the media
// gallery: decode task outcomes, index reconciliation writes, content index
// query timings, scanner progress and HTTP request metrics.
package metrics
