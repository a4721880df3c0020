package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	requestsTotal        *prometheus.CounterVec
	requestLatency       *prometheus.HistogramVec
	errorsTotal          *prometheus.CounterVec
	messagesSent         *prometheus.CounterVec
	pollsTotal           prometheus.Counter
	pollMessagesReturned prometheus.Counter
	reactionsToggled     *prometheus.CounterVec
	presenceHeartbeats   *prometheus.CounterVec
	uploadLatency        prometheus.Histogram
	uploadRejected       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the chat API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat API requests served.",
		}, []string{"method", "route", "status"})

		requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_request_latency_seconds",
			Help:    "Latency distribution for chat API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_errors_total",
			Help: "Total number of error responses returned by chat endpoints.",
		}, []string{"method", "route", "status"})

		messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages appended to room logs, by kind.",
		}, []string{"kind"})

		pollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_polls_total",
			Help: "fetch-since polls served.",
		})

		pollMessagesReturned = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_poll_messages_returned_total",
			Help: "Messages handed to polling clients.",
		})

		reactionsToggled = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_reactions_toggled_total",
			Help: "Reaction toggles, by resulting action.",
		}, []string{"action"})

		presenceHeartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_presence_heartbeats_total",
			Help: "Presence heartbeats recorded, by declared status.",
		}, []string{"status"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_upload_latency_seconds",
			Help:    "Attachment ingestion latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})

		uploadRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_upload_rejected_total",
			Help: "Attachment uploads rejected during validation.",
		}, []string{"reason"})

		prometheus.MustRegister(
			requestsTotal, requestLatency, errorsTotal,
			messagesSent, pollsTotal, pollMessagesReturned,
			reactionsToggled, presenceHeartbeats,
			uploadLatency, uploadRejected,
		)
	})
}

// Requests exposes the counter for chat API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for chat API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatency
}

// Errors exposes the counter for chat API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// MessagesSent exposes the per-kind message counter.
func MessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesSent
}

// PollsTotal exposes the fetch-since poll counter.
func PollsTotal() prometheus.Counter {
	RegisterMetrics()
	return pollsTotal
}

// PollMessagesReturned exposes the counter of messages handed to pollers.
func PollMessagesReturned() prometheus.Counter {
	RegisterMetrics()
	return pollMessagesReturned
}

// ReactionsToggled exposes the reaction toggle counter.
func ReactionsToggled() *prometheus.CounterVec {
	RegisterMetrics()
	return reactionsToggled
}

// PresenceHeartbeats exposes the heartbeat counter.
func PresenceHeartbeats() *prometheus.CounterVec {
	RegisterMetrics()
	return presenceHeartbeats
}

// UploadLatency exposes the attachment ingestion latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}

// UploadRejected exposes the upload rejection counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejected
}
