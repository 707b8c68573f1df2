package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fall",
		Name:      "frames_processed_total",
		Help:      "Total number of frames consumed from the tracked stream",
	}, []string{"camera_id"})

	ObservationsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fall",
		Name:      "observations_skipped_total",
		Help:      "Observations dropped for missing or invalid keypoints",
	}, []string{"camera_id"})

	FallsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fall",
		Name:      "falls_detected_total",
		Help:      "Number of track ids that latched into the falling state",
	}, []string{"camera_id"})

	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fall",
		Name:      "poll_errors_total",
		Help:      "Upstream reads that failed or returned a malformed entry",
	}, []string{"camera_id"})

	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fall",
		Name:      "publish_errors_total",
		Help:      "Downstream writes that failed",
	}, []string{"camera_id"})

	AlertsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fall",
		Name:      "alerts_dropped_total",
		Help:      "Fall alerts dropped because the delivery queue was full",
	}, []string{"camera_id"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fall",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stage steps",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"stage"})

	TrackedIDs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fall",
		Name:      "tracked_ids",
		Help:      "Track ids currently holding kinematic history",
	}, []string{"camera_id"})

	LatchedIDs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fall",
		Name:      "latched_ids",
		Help:      "Track ids currently latched as fallen",
	}, []string{"camera_id"})

	DiagnosticsFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fall",
		Name:      "diagnostics_flushes_total",
		Help:      "Velocity history flushes by result",
	}, []string{"camera_id", "result"})

	ActiveCameras = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fall",
		Name:      "active_cameras",
		Help:      "Number of camera runners currently running",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fall",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fall",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
