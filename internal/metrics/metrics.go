package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 向量存储与检索的核心指标
var (
	VectorCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "docuhub",
		Subsystem: "vector_store",
		Name:      "vectors_total",
		Help:      "Current number of vectors in the index.",
	})

	DocumentCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "docuhub",
		Subsystem: "vector_store",
		Name:      "documents_total",
		Help:      "Current number of distinct documents.",
	})

	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docuhub",
		Subsystem: "vector_store",
		Name:      "persist_duration_seconds",
		Help:      "Duration of index persistence operations.",
		Buckets:   prometheus.DefBuckets,
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docuhub",
		Subsystem: "retrieval",
		Name:      "search_duration_seconds",
		Help:      "Duration of similarity search operations.",
		Buckets:   prometheus.DefBuckets,
	})

	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuhub",
		Subsystem: "pipeline",
		Name:      "documents_processed_total",
		Help:      "Documents processed by the ingestion pipeline.",
	}, []string{"result"})

	EmbeddingBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docuhub",
		Subsystem: "pipeline",
		Name:      "embedding_batches_total",
		Help:      "Embedding provider batch calls.",
	}, []string{"result"})
)

// Handler 返回/metrics处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
