package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("assistant")

var assistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "assistant_requests",
	Help: "Number of requests to the assistant API, by outcome",
}, []string{"outcome"})

var assistantDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "assistant_request_duration_sec",
	Help:    "Duration of assistant API requests",
	Buckets: prometheus.ExponentialBucketsRange(0.05, 60, 14),
})
