package content

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "content_publish_total",
	Help: "Number of publish attempts which reached moderation, by kind and outcome",
}, []string{"kind", "outcome"})

var publishErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "content_publish_errors",
	Help: "Number of publish attempts which failed on infrastructure errors",
})

var reviewCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "content_reviews_total",
	Help: "Number of moderator status changes, by new status",
}, []string{"status"})
