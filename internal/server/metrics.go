package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucherscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voucherscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucherscan_scans_total",
			Help: "Total number of voucher scans",
		},
		[]string{"type", "status"}, // type: image, pdf, source, live
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voucherscan_scan_duration_seconds",
			Help:    "Voucher scan duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"type"},
	)

	codesExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voucherscan_codes_extracted_total",
			Help: "Total number of voucher codes extracted",
		},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "voucherscan_upload_size_bytes",
			Help: "Size of uploaded files in bytes",
			Buckets: []float64{
				1024, 10 * 1024, 100 * 1024, 1024 * 1024,
				10 * 1024 * 1024, 50 * 1024 * 1024,
			},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voucherscan_websocket_connections",
			Help: "Number of active websocket subscribers",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucherscan_websocket_messages_total",
			Help: "Total number of websocket messages sent",
		},
		[]string{"type"},
	)
)
