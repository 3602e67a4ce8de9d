package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Thumbnail decode metrics
var (
	DecodeTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_decode_tasks_total",
			Help: "Total number of thumbnail decode tasks by outcome",
		},
		[]string{"kind", "outcome"}, // outcome: applied, cancelled, superseded, failed, needs_refresh
	)

	DecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_decode_duration_seconds",
			Help:    "Thumbnail decode duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	DecodeTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_gallery_decode_tasks_in_flight",
			Help: "Number of decode tasks currently running",
		},
	)
)

// Reconciliation metrics
var (
	ReconciliationWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_reconciliation_writes_total",
			Help: "Total number of index dimension corrections by status",
		},
		[]string{"status"}, // success, error
	)

	RecordRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_gallery_record_refreshes_total",
			Help: "Total number of record refresh requests issued to the collection",
		},
	)
)

// Index metrics
var (
	IndexQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_index_queries_total",
			Help: "Total number of content index queries",
		},
		[]string{"operation", "status"},
	)

	IndexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_index_query_duration_seconds",
			Help:    "Content index query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	RowBuildFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_row_build_failures_total",
			Help: "Total number of index rows skipped because a record could not be built",
		},
		[]string{"kind"},
	)
)

// Scanner metrics
var (
	ScannerFilesIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_scanner_files_indexed_total",
			Help: "Total number of files inserted or updated by the scanner",
		},
		[]string{"kind"},
	)

	ScannerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_gallery_scanner_duration_seconds",
			Help:    "Duration of full scanner passes in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
