package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("chat")

var sendCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chat_messages_sent",
	Help: "Number of chat messages submitted, by moderation outcome",
}, []string{"outcome"})

var assistantCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chat_assistant_replies",
	Help: "Number of assistant reply attempts, by outcome",
}, []string{"outcome"})

var assistantDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "chat_assistant_duration_sec",
	Help:    "Time waiting on the assistant for a reply",
	Buckets: prometheus.ExponentialBucketsRange(0.05, 60, 14),
})

var subscriberCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chat_subscribers",
	Help: "Number of live conversation subscribers",
})

var subscriberDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chat_subscriber_dropped",
	Help: "Number of messages not delivered to a slow subscriber",
})
