// Package metrics exposes Prometheus instrumentation for the registry engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for registry operations.
type Metrics struct {
	// Document saves by outcome
	Saves *prometheus.CounterVec

	// Save latency including serialization
	SaveLatency prometheus.Histogram

	// Imports by collection and policy
	Imports *prometheus.CounterVec

	// Imported rows by collection and effect (created, updated, skipped)
	ImportedRows *prometheus.CounterVec

	// Repair workflow moves by target state
	RepairTransitions *prometheus.CounterVec

	// Report summary cache lookups by result (hit, miss)
	SummaryCache *prometheus.CounterVec
}

// New registers the registry metrics with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Saves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memreg_document_saves_total",
			Help: "Total registry document saves by outcome",
		}, []string{"outcome"}), // outcome: "ok", "error"

		SaveLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "memreg_document_save_duration_seconds",
			Help:    "Duration of registry document saves",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		Imports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memreg_imports_total",
			Help: "Total spreadsheet imports by collection and policy",
		}, []string{"collection", "policy"}),

		ImportedRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memreg_import_rows_total",
			Help: "Rows processed by spreadsheet imports by collection and effect",
		}, []string{"collection", "effect"}),

		RepairTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memreg_repair_transitions_total",
			Help: "Repair workflow moves by target state",
		}, []string{"state"}),

		SummaryCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memreg_summary_cache_lookups_total",
			Help: "Report summary cache lookups by result",
		}, []string{"result"}),
	}
}

// ObserveSave records one document save.
func (m *Metrics) ObserveSave(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Saves.WithLabelValues(outcome).Inc()
	m.SaveLatency.Observe(d.Seconds())
}

// ObserveImport records an import and its row counts.
func (m *Metrics) ObserveImport(collection, policy string, created, updated, skipped int) {
	if m == nil {
		return
	}
	m.Imports.WithLabelValues(collection, policy).Inc()
	m.ImportedRows.WithLabelValues(collection, "created").Add(float64(created))
	m.ImportedRows.WithLabelValues(collection, "updated").Add(float64(updated))
	m.ImportedRows.WithLabelValues(collection, "skipped").Add(float64(skipped))
}

// IncrementRepairTransition records a move of the repair workflow.
func (m *Metrics) IncrementRepairTransition(state string) {
	if m != nil {
		m.RepairTransitions.WithLabelValues(state).Inc()
	}
}

// ObserveSummaryCache records a summary cache lookup.
func (m *Metrics) ObserveSummaryCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.SummaryCache.WithLabelValues("hit").Inc()
		return
	}
	m.SummaryCache.WithLabelValues("miss").Inc()
}
