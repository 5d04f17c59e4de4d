// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingest metrics
	MeasurementsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpm_measurements_ingested_total",
			Help: "Total number of measurements persisted",
		},
		[]string{"metric", "status"},
	)

	IngestBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rpm_ingest_batch_size",
			Help:    "Number of measurements per ingest request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rpm_ingest_duration_seconds",
			Help:    "Time taken to evaluate and persist one ingest batch",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// Alert metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpm_alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"severity", "source"}, // source: rule, escalation, correlation
	)

	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rpm_alerts_acknowledged_total",
			Help: "Total number of alerts acknowledged by clinicians",
		},
	)

	// Rule cache metrics
	RuleCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpm_rule_cache_lookups_total",
			Help: "Rule cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	// Broadcast metrics
	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rpm_ws_active_subscribers",
			Help: "Current number of connected live subscribers",
		},
	)

	EnvelopesBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpm_envelopes_broadcast_total",
			Help: "Total number of envelopes fanned out",
		},
		[]string{"type"},
	)

	SubscribersDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpm_ws_subscribers_dropped_total",
			Help: "Subscribers disconnected by the broadcaster",
		},
		[]string{"reason"}, // buffer_full, write_error
	)

	// Kafka producer metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpm_kafka_publish_total",
			Help: "Total number of envelopes mirrored to Kafka",
		},
		[]string{"status"}, // success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rpm_kafka_publish_duration_seconds",
			Help:    "Time from enqueue to broker acknowledgement for mirrored envelopes",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpm_webhook_deliveries_total",
			Help: "Alert webhook deliveries by outcome",
		},
		[]string{"result"}, // success, failed, dropped
	)

	// Analytics metrics
	AnalyticsDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rpm_analytics_duration_seconds",
			Help:    "Time taken to compute an analytics summary",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler exposes the default registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
