package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloader_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "downloader_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Resolution metrics
	ResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloader_resolves_total",
			Help: "Total number of media resolutions by platform and outcome",
		},
		[]string{"platform", "status"},
	)

	// Delivery metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloader_deliveries_total",
			Help: "Total number of deliveries by mode and outcome",
		},
		[]string{"mode", "status"},
	)

	StreamedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "downloader_streamed_bytes_total",
			Help: "Total artifact bytes streamed to callers",
		},
	)

	MergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "downloader_merge_duration_seconds",
			Help:    "External merge process duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~8.5min
		},
	)

	// Batch metrics
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downloader_batch_items_total",
			Help: "Total number of batch items by outcome",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequest records an HTTP request with its latency
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordResolve records a resolution attempt
func RecordResolve(platform, status string) {
	ResolvesTotal.WithLabelValues(platform, status).Inc()
}

// RecordDelivery records a delivery attempt
func RecordDelivery(mode, status string) {
	DeliveriesTotal.WithLabelValues(mode, status).Inc()
}

// AddStreamedBytes adds to the streamed byte counter
func AddStreamedBytes(n float64) {
	if n > 0 {
		StreamedBytesTotal.Add(n)
	}
}

// ObserveMergeDuration records one merge process duration
func ObserveMergeDuration(seconds float64) {
	MergeDuration.Observe(seconds)
}

// RecordBatchItem records one batch item outcome
func RecordBatchItem(status string) {
	BatchItemsTotal.WithLabelValues(status).Inc()
}
