package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	trackingBoardsTotal *prometheus.CounterVec
	trackingStaleTotal  prometheus.Counter
	submissionsTotal    *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	streamClientsActive *prometheus.GaugeVec
	activityFeedTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors of the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		trackingBoardsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_boards_total",
			Help: "Tracking boards served, by view and snapshot source.",
		}, []string{"view", "source"})

		trackingStaleTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_stale_snapshots_total",
			Help: "Fetched snapshots discarded because a newer one was already committed.",
		})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_submissions_created_total",
			Help: "Submissions accepted, by timing relative to the deadline.",
		}, []string{"timing"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_upload_rejected_total",
			Help: "Submission uploads rejected during validation.",
		}, []string{"reason"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_notifications_published_total",
			Help: "Notifications persisted and published, by type.",
		}, []string{"type"})

		streamClientsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracker_notification_stream_clients",
			Help: "Connected notification stream clients, by transport.",
		}, []string{"transport"})

		activityFeedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_activity_feed_requests_total",
			Help: "Activity feed lookups, by cache outcome.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			trackingBoardsTotal,
			trackingStaleTotal,
			submissionsTotal,
			uploadRejectedTotal,
			notificationsTotal,
			streamClientsActive,
			activityFeedTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// TrackingBoards counts served boards.
func TrackingBoards() *prometheus.CounterVec {
	RegisterMetrics()
	return trackingBoardsTotal
}

// TrackingStaleSnapshots counts discarded out-of-order snapshots.
func TrackingStaleSnapshots() prometheus.Counter {
	RegisterMetrics()
	return trackingStaleTotal
}

// SubmissionsCreated counts accepted submissions.
func SubmissionsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// UploadRejected counts rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// NotificationsPublished counts notifications accepted by Publish on this node.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// StreamClients tracks connected notification stream clients.
func StreamClients() *prometheus.GaugeVec {
	RegisterMetrics()
	return streamClientsActive
}

// ActivityFeedRequests counts activity feed lookups.
func ActivityFeedRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return activityFeedTotal
}
