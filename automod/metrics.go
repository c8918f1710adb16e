package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("automod")

var evaluateCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_evaluations",
	Help: "Number of moderation evaluations, by verdict",
}, []string{"verdict"})

var evaluateErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_evaluation_errors",
	Help: "Number of evaluations which failed on infrastructure errors",
})

var evaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "automod_evaluate_duration_sec",
	Help: "Duration of moderation evaluations",
})

var violationCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_violations_recorded",
	Help: "Number of policy violations recorded against accounts",
})

var suspensionCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_suspensions",
	Help: "Number of accounts moved in to suspension",
})

var notifyErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_notify_errors",
	Help: "Number of failed suspension notifications",
})
