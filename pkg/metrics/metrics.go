package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Outbox OutboxMetrics
	Kafka  KafkaMetrics
	API    APIMetrics
}

type OutboxMetrics struct {
	// Исходы отправок провайдеру, включая немедленные попытки
	EmailsSentTotal *prometheus.CounterVec
	// Состав таблицы outbox, обновляется периодической задачей
	CurrentEmailCounts *prometheus.GaugeVec
}

type KafkaMetrics struct {
	ConsumerMessagesTotal   *prometheus.CounterVec
	ConsumerProcessDuration *prometheus.HistogramVec
	ConsumerRebalancesTotal *prometheus.CounterVec
	ConsumerInFlight        *prometheus.GaugeVec
}

type APIMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Outbox: OutboxMetrics{
			EmailsSentTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "emailer",
				Subsystem: "outbox",
				Name:      "emails_sent_total",
				Help:      "Send attempts against the mail provider by result.",
			}, []string{"result"}), // success|failure

			CurrentEmailCounts: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "emailer",
				Subsystem: "outbox",
				Name:      "current_email_counts",
				Help:      "Current outbox composition by type.",
			}, []string{"type"}), // sent_last_hour|pending|failed
		},

		Kafka: KafkaMetrics{
			ConsumerMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "emailer",
				Subsystem: "kafka",
				Name:      "consumer_messages_total",
				Help:      "Total consumed Kafka messages by topic.",
			}, []string{"topic"}),

			ConsumerProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "emailer",
				Subsystem: "kafka",
				Name:      "consumer_process_duration_seconds",
				Help:      "Kafka message processing duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"topic"}),

			ConsumerRebalancesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "emailer",
				Subsystem: "kafka",
				Name:      "consumer_rebalances_total",
				Help:      "Consumer rebalance lifecycle events.",
			}, []string{"event"}),

			ConsumerInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "emailer",
				Subsystem: "kafka",
				Name:      "consumer_inflight_messages",
				Help:      "Messages currently being processed.",
			}, []string{"topic"}),
		},

		API: APIMetrics{
			HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "emailer",
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path and status.",
			}, []string{"method", "path", "status"}),

			HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "emailer",
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"method", "path", "status"}),
		},
	}
}
