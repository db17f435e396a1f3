package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of HTTP requests processed by the messaging service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "messaging_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	messagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Total number of chat messages persisted.",
		},
	)
	fanoutJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_fanout_jobs_total",
			Help: "Total number of delivery fanout jobs by outcome.",
		},
		[]string{"outcome"},
	)
	notificationDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_notification_dispatch_total",
			Help: "Total number of notification dispatch outcomes per channel.",
		},
		[]string{"channel", "outcome"},
	)
	notificationsBatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_notifications_batched_total",
			Help: "Total number of notifications claimed by the batch scheduler.",
		},
	)
	queueRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_queue_retries_total",
			Help: "Total number of queue message retries per queue.",
		},
		[]string{"queue"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		messagesSentTotal,
		fanoutJobsTotal,
		notificationDispatchTotal,
		notificationsBatchedTotal,
		queueRetriesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncMessageSent() {
	messagesSentTotal.Inc()
}

func IncFanoutJob(outcome string) {
	fanoutJobsTotal.WithLabelValues(outcome).Inc()
}

func IncNotificationDispatch(channel, outcome string) {
	notificationDispatchTotal.WithLabelValues(channel, outcome).Inc()
}

func AddNotificationsBatched(n int) {
	notificationsBatchedTotal.Add(float64(n))
}

func IncQueueRetry(queue string) {
	queueRetriesTotal.WithLabelValues(queue).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
