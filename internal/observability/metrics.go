package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	reportsSubmittedTotal   *prometheus.CounterVec
	duplicateRejectedTotal  prometheus.Counter
	matchesFoundTotal       *prometheus.CounterVec
	matchScanFailuresTotal  prometheus.Counter
	chatThreadsCreatedTotal prometheus.Counter
	chatMessagesSentTotal   *prometheus.CounterVec
	chatConnectionsActive   prometheus.Gauge
	notificationsPublished  *prometheus.CounterVec
	sseClientsActive        prometheus.Gauge
	realtimeDroppedTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lostfound_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		reportsSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_reports_submitted_total",
			Help: "Reports accepted by kind.",
		}, []string{"kind"})

		duplicateRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_reports_duplicate_rejected_total",
			Help: "Submissions rejected by the duplicate guard.",
		})

		matchesFoundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_matches_found_total",
			Help: "Match events by the kind of the submitted report.",
		}, []string{"kind"})

		matchScanFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_match_scan_failures_total",
			Help: "Candidate scans or match transitions that degraded to no-match.",
		})

		chatThreadsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lostfound_chat_threads_created_total",
			Help: "Chat threads created.",
		})

		chatMessagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_chat_messages_sent_total",
			Help: "Chat messages persisted or relayed, by origin.",
		}, []string{"origin"})

		chatConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lostfound_chat_connections_active",
			Help: "Open chat websocket sessions.",
		})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_notifications_published_total",
			Help: "Notifications published by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lostfound_sse_clients_active",
			Help: "Connected notification stream clients.",
		})

		realtimeDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lostfound_realtime_dropped_total",
			Help: "Realtime deliveries dropped because a subscriber buffer was full.",
		}, []string{"stream"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			reportsSubmittedTotal,
			duplicateRejectedTotal,
			matchesFoundTotal,
			matchScanFailuresTotal,
			chatThreadsCreatedTotal,
			chatMessagesSentTotal,
			chatConnectionsActive,
			notificationsPublished,
			sseClientsActive,
			realtimeDroppedTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

func ReportsSubmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return reportsSubmittedTotal
}

func DuplicateReportsRejected() prometheus.Counter {
	RegisterMetrics()
	return duplicateRejectedTotal
}

func MatchesFound() *prometheus.CounterVec {
	RegisterMetrics()
	return matchesFoundTotal
}

func MatchScanFailures() prometheus.Counter {
	RegisterMetrics()
	return matchScanFailuresTotal
}

func ChatThreadsCreated() prometheus.Counter {
	RegisterMetrics()
	return chatThreadsCreatedTotal
}

func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSentTotal
}

func ChatConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatConnectionsActive
}

func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// RealtimeDropped counts deliveries skipped for slow subscribers.
func RealtimeDropped() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeDroppedTotal
}
