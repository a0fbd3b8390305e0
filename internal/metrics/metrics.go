package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for evaluation and persistence counters.
const (
	OutcomeSuccess       = "success"
	OutcomeConfiguration = "configuration_error"
	OutcomeService       = "service_error"
	OutcomeEmpty         = "empty_response"
	OutcomeParse         = "parse_error"
	OutcomeError         = "error"
	OutcomeSkipped       = "skipped"
)

var (
	registerOnce       sync.Once
	evaluationsTotal   *prometheus.CounterVec
	persistTotal       *prometheus.CounterVec
	completionSeconds  *prometheus.HistogramVec
	droppedQuestions   prometheus.Counter
	scoreMismatchTotal *prometheus.CounterVec
)

// Register initialises the Prometheus collectors.
func Register() {
	registerOnce.Do(func() {
		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teachassist_evaluations_total",
			Help: "Assessment evaluations by outcome.",
		}, []string{"outcome"})

		persistTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teachassist_evaluation_persist_total",
			Help: "Best-effort evaluation writes to object storage by outcome.",
		}, []string{"outcome"})

		completionSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teachassist_completion_seconds",
			Help:    "Latency of chat completion calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"operation"})

		droppedQuestions = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teachassist_parse_dropped_questions_total",
			Help: "Questions omitted from an evaluation because the reply block was missing or malformed.",
		})

		scoreMismatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teachassist_score_mismatch_total",
			Help: "Parsed scores whose denominator or sum disagrees with the assessment definition.",
		}, []string{"kind"})

		prometheus.MustRegister(evaluationsTotal, persistTotal, completionSeconds, droppedQuestions, scoreMismatchTotal)
	})
}

// Evaluations exposes the evaluation outcome counter.
func Evaluations() *prometheus.CounterVec {
	Register()
	return evaluationsTotal
}

// Persist exposes the persistence outcome counter.
func Persist() *prometheus.CounterVec {
	Register()
	return persistTotal
}

// CompletionLatency exposes the completion latency histogram.
func CompletionLatency() *prometheus.HistogramVec {
	Register()
	return completionSeconds
}

// DroppedQuestions exposes the counter of questions omitted by the tolerant parser.
func DroppedQuestions() prometheus.Counter {
	Register()
	return droppedQuestions
}

// ScoreMismatches exposes the score mismatch counter.
func ScoreMismatches() *prometheus.CounterVec {
	Register()
	return scoreMismatchTotal
}
