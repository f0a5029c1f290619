// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the flat-file pipeline.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//
// Concrete systems live in subpackages (prompush, datadog) so the pipeline
// depends only on this package.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StepTotal           = "flatfile_step_total"
	StepDurationSeconds = "flatfile_step_duration_seconds"
	RowsTotal           = "flatfile_rows_total"
	PromotionsTotal     = "flatfile_promotions_total"
	SkippedColumnsTotal = "flatfile_skipped_columns_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and success/failure of one pipeline stage
// (load, profile, ddl, store, apply).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows increments a row counter for kind ("loaded", "skipped").
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordPromotion counts a column whose potential type differs from its
// original type.
func RecordPromotion(job, from, to string) {
	current().IncCounter(PromotionsTotal, 1, Labels{
		"job":  job,
		"from": from,
		"to":   to,
	})
}

// RecordSkippedColumns counts columns left out of the generated DDL.
func RecordSkippedColumns(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(SkippedColumnsTotal, float64(delta), Labels{
		"job": job,
	})
}
