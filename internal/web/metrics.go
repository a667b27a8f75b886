package web

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts file selections and submissions. A nil *Metrics counts nothing.
type Metrics struct {
	fileSelections *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fileSelections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billed_file_selections_total",
			Help: "Receipt files selected on the new bill form, by result.",
		}, []string{"result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billed_submissions_total",
			Help: "New bill form submissions, by outcome.",
		}, []string{"outcome"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billed_store_errors_total",
			Help: "Failed store calls during submission, by step.",
		}, []string{"step"}),
	}
	reg.MustRegister(m.fileSelections, m.submissions, m.storeErrors)
	return m
}

func (m *Metrics) fileSelected(result string) {
	if m == nil {
		return
	}
	m.fileSelections.WithLabelValues(result).Inc()
}

func (m *Metrics) submitted(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) storeFailed(step string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(step).Inc()
}
