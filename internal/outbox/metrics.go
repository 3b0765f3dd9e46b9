package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesPublished = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "qartinha",
	Subsystem: "outbox",
	Name:      "messages_published_total",
	Help:      "Outbox messages published to the broker",
})

var publishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "qartinha",
	Subsystem: "outbox",
	Name:      "publish_failures_total",
	Help:      "Outbox batches that failed to publish",
})

var batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "qartinha",
	Subsystem: "outbox",
	Name:      "batch_duration_seconds",
	Help:      "Time spent processing one outbox batch",
	Buckets:   prometheus.DefBuckets,
})
