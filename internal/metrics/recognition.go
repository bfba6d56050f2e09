package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recognition pipeline Prometheus metrics.
var (
	RecognitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pictura",
			Name:      "recognitions_total",
			Help:      "Total number of recognition attempts by outcome",
		},
		[]string{"outcome"}, // "match" / "no_match" / "error"
	)

	RecognitionScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pictura",
			Name:      "recognition_score",
			Help:      "Best cosine similarity observed per recognition attempt",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"outcome"},
	)

	RecognitionCandidates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pictura",
			Name:      "recognition_candidates",
			Help:      "Number of catalog entries with features scanned by the last recognition",
		},
	)

	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pictura",
			Name:      "extraction_duration_seconds",
			Help:      "Feature extraction duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"extractor"},
	)

	ExtractionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pictura",
			Name:      "extraction_errors_total",
			Help:      "Total feature extraction errors",
		},
		[]string{"extractor", "error_type"},
	)

	FeatureCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pictura",
			Name:      "feature_cache_total",
			Help:      "Feature cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	DescriptionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pictura",
			Name:      "description_requests_total",
			Help:      "Total number of description generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	DescriptionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pictura",
			Name:      "description_tokens_total",
			Help:      "Total tokens consumed by description generation",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "completion"
	)

	IngestItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pictura",
			Name:      "ingest_items_total",
			Help:      "Reference images processed by the ingestion pipeline",
		},
		[]string{"status"},
	)
)

var recMetricsRegistered bool

// RegisterRecognitionMetrics registers the recognition pipeline metrics. Must be called once from main.
func RegisterRecognitionMetrics() {
	if recMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecognitionsTotal)
	prometheus.MustRegister(RecognitionScore)
	prometheus.MustRegister(RecognitionCandidates)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(ExtractionErrorsTotal)
	prometheus.MustRegister(FeatureCacheTotal)
	prometheus.MustRegister(DescriptionRequestsTotal)
	prometheus.MustRegister(DescriptionTokensTotal)
	prometheus.MustRegister(IngestItemsTotal)
	recMetricsRegistered = true
}
