// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Profiling runs are short-lived batch jobs, so metrics are pushed to a
// Pushgateway on Flush instead of being exposed on a scrape endpoint. The
// job label is the Pushgateway grouping key; the remaining labels map onto
// collector labels.
package prompush

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/jkramsay/flat-file-manager/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter    *prometheus.CounterVec
	stepDuration   *prometheus.SummaryVec
	rowCounter     *prometheus.CounterVec
	promotions     *prometheus.CounterVec
	skippedColumns prometheus.Counter
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errors.New("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "flatfile"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Pipeline stage executions by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDurationSeconds,
				Help:       "Pipeline stage duration in seconds by step and status.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"step", "status"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Rows read from flat files by kind (loaded, skipped).",
			},
			[]string{"kind"},
		),
		promotions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.PromotionsTotal,
				Help: "Columns promoted from their original type to a more specific type.",
			},
			[]string{"from", "to"},
		),
		skippedColumns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metrics.SkippedColumnsTotal,
				Help: "Columns left out of generated DDL because no target type fits.",
			},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":    b.stepCounter,
		"step summary":    b.stepDuration,
		"row counter":     b.rowCounter,
		"promotions":      b.promotions,
		"skipped columns": b.skippedColumns,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, errors.Wrapf(err, "prompush: register %s", name)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter != nil {
			b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RowsTotal:
		if b.rowCounter != nil {
			b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.PromotionsTotal:
		if b.promotions != nil {
			b.promotions.WithLabelValues(labels["from"], labels["to"]).Add(delta)
		}
	case metrics.SkippedColumnsTotal:
		if b.skippedColumns != nil {
			b.skippedColumns.Add(delta)
		}
	}
}

// ObserveHistogram implements metrics.Backend for the step duration summary.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
