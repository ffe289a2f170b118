// Package metrics exposes Prometheus counters for the stock engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements the domain Recorder interfaces.
type Metrics struct {
	allocations     *prometheus.CounterVec
	allocationFails *prometheus.CounterVec
	allocationRetry prometheus.Counter
	movements       *prometheus.CounterVec
	reconRuns       prometheus.Counter
	reconDiscrep    prometheus.Counter
}

// New registers and returns the engine metrics.
func New() *Metrics {
	return &Metrics{
		allocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hoperx_allocations_total",
			Help: "Completed stock allocations by strategy.",
		}, []string{"strategy"}),
		allocationFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hoperx_allocation_failures_total",
			Help: "Failed stock allocations by error code.",
		}, []string{"code"}),
		allocationRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hoperx_allocation_retries_total",
			Help: "Allocation retries caused by concurrent modification.",
		}),
		movements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hoperx_stock_movements_total",
			Help: "Recorded stock movements by type.",
		}, []string{"type"}),
		reconRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hoperx_reconciliation_runs_total",
			Help: "Completed reconciliation runs.",
		}),
		reconDiscrep: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hoperx_reconciliation_discrepancies_total",
			Help: "Discrepancies found by reconciliation runs.",
		}),
	}
}

// AllocationPerformed implements inventory.Recorder.
func (m *Metrics) AllocationPerformed(strategy string, batches int) {
	m.allocations.WithLabelValues(strategy).Inc()
}

// AllocationFailed implements inventory.Recorder.
func (m *Metrics) AllocationFailed(code string) {
	m.allocationFails.WithLabelValues(code).Inc()
}

// AllocationRetried implements inventory.Recorder.
func (m *Metrics) AllocationRetried() {
	m.allocationRetry.Inc()
}

// MovementRecorded implements inventory.Recorder.
func (m *Metrics) MovementRecorded(movementType string) {
	m.movements.WithLabelValues(movementType).Inc()
}

// ReconciliationRun implements reconciliation.Recorder.
func (m *Metrics) ReconciliationRun(batches, discrepancies int) {
	m.reconRuns.Inc()
	m.reconDiscrep.Add(float64(discrepancies))
}
