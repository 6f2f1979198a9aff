// Package telemetry wires the orchestrator's operation counters to an
// injectable Prometheus registerer, in the teacher's promauto style.
// A nil Registerer is valid: metrics are then registered against
// nothing and every recorder call is a safe no-op via the library's
// own default behavior.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters and histograms for store and orchestrator
// operations.
type Metrics struct {
	// StoreOperations counts store-layer calls by operation and
	// outcome. Labels: operation (insert|get|delete|search|...), status (ok|error)
	StoreOperations *prometheus.CounterVec

	// StoreOperationDuration measures store-layer call latency.
	// Labels: operation
	StoreOperationDuration *prometheus.HistogramVec

	// RecallHits counts how many candidates Recall returns per call.
	RecallHits prometheus.Histogram

	// EmbeddingDegraded counts embedding calls that fell back to
	// keyword mode. Labels: provider
	EmbeddingDegraded *prometheus.CounterVec

	// CompactionsTotal counts auto- and manual compaction passes.
	// Labels: trigger (auto|manual)
	CompactionsTotal *prometheus.CounterVec

	// CompactionMerges counts memories merged away by compaction.
	CompactionMerges prometheus.Counter
}

// New registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated test registry, or nil to
// use the default global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StoreOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorymesh_store_operations_total",
				Help: "Total number of store operations by operation and status",
			},
			[]string{"operation", "status"},
		),

		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memorymesh_store_operation_duration_seconds",
				Help:    "Duration of store operations in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),

		RecallHits: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "memorymesh_recall_hits",
				Help:    "Number of candidates returned per Recall call",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),

		EmbeddingDegraded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorymesh_embedding_degraded_total",
				Help: "Total number of embedding calls that degraded to keyword mode",
			},
			[]string{"provider"},
		),

		CompactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorymesh_compactions_total",
				Help: "Total number of compaction passes by trigger",
			},
			[]string{"trigger"},
		),

		CompactionMerges: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "memorymesh_compaction_merges_total",
				Help: "Total number of memories merged away by compaction",
			},
		),
	}
}

// RecordStoreOp records the outcome and latency of a store operation.
func (m *Metrics) RecordStoreOp(operation string, durationSeconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordRecall records how many candidates a Recall call returned.
func (m *Metrics) RecordRecall(hitCount int) {
	m.RecallHits.Observe(float64(hitCount))
}

// RecordEmbeddingDegraded records a provider falling back to keyword mode.
func (m *Metrics) RecordEmbeddingDegraded(provider string) {
	m.EmbeddingDegraded.WithLabelValues(provider).Inc()
}

// RecordCompaction records one compaction pass and the memories it merged away.
func (m *Metrics) RecordCompaction(trigger string, mergedCount int) {
	m.CompactionsTotal.WithLabelValues(trigger).Inc()
	m.CompactionMerges.Add(float64(mergedCount))
}
