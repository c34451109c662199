package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	uploads         *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	deletes         *prometheus.CounterVec
	reconcileRuns   prometheus.Counter
	reconcileIssues *prometheus.CounterVec
}

// NewMetrics creates the pipeline counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medvault_uploads_total",
			Help: "Upload pipeline runs by final state.",
		}, []string{"outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medvault_upload_compensations_total",
			Help: "Compensating deletes of stored bytes after a failed metadata insert.",
		}, []string{"result"}),
		deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medvault_deletes_total",
			Help: "Delete pipeline runs by outcome.",
		}, []string{"outcome"}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medvault_reconcile_runs_total",
			Help: "Completed reconciliation sweeps.",
		}),
		reconcileIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medvault_reconcile_issues_total",
			Help: "Inconsistencies found by reconciliation, by type.",
		}, []string{"type"}),
	}

	for _, c := range []prometheus.Collector{m.uploads, m.compensations, m.deletes, m.reconcileRuns, m.reconcileIssues} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) upload(outcome string) {
	if m != nil {
		m.uploads.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) compensation(result string) {
	if m != nil {
		m.compensations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) delete(outcome string) {
	if m != nil {
		m.deletes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) reconcile(report *ReconcileReport) {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
	for _, is := range report.Issues {
		m.reconcileIssues.WithLabelValues(is.Type).Inc()
	}
}
