package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CapturesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fp",
		Name:      "captures_processed_total",
		Help:      "Total number of raw sensor captures decoded",
	}, []string{"session_id"})

	QualityRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fp",
		Name:      "quality_rejections_total",
		Help:      "Total number of captures rejected by the quality gate, by failing criterion",
	}, []string{"criterion"})

	VerifyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fp",
		Name:      "verify_outcomes_total",
		Help:      "Total verify decisions by result (matched, rejected)",
	}, []string{"outcome"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fp",
		Name:      "inference_duration_seconds",
		Help:      "Duration of embedding-network and verify stages",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fp",
		Name:      "queue_depth",
		Help:      "Number of pending capture tasks in queue",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fp",
		Name:      "active_capture_sessions",
		Help:      "Number of currently active enroll/identify sessions",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fp",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fp",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
