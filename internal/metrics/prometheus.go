package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curator_classification_duration_seconds",
			Help:    "Per-target classification duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"classifier"},
	)

	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_classifications_total",
			Help: "Total classification results produced",
		},
		[]string{"classifier", "status"},
	)

	ConfidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curator_confidence_score",
			Help:    "Classifier confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"classifier"},
	)

	IssuesFlagged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_issues_flagged_total",
			Help: "Targets flagged with a curation issue",
		},
		[]string{"issue"},
	)

	SaveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curator_result_save_failures_total",
			Help: "Classification results that could not be persisted",
		},
	)

	EmbeddingsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_embeddings_generated_total",
			Help: "Embeddings generated on demand per space",
		},
		[]string{"space"},
	)

	GraphAlgorithmRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_graph_algorithm_runs_total",
			Help: "Full-graph algorithm executions",
		},
		[]string{"algorithm", "status"},
	)
)

func Init() {
	prometheus.MustRegister(ClassificationDuration)
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(IssuesFlagged)
	prometheus.MustRegister(SaveFailures)
	prometheus.MustRegister(EmbeddingsGenerated)
	prometheus.MustRegister(GraphAlgorithmRuns)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
