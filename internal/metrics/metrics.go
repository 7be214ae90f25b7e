// Package metrics exposes export counters through a private Prometheus
// registry and writes them in node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "trackexport"

// Recorder accumulates run and job metrics.
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
}

// New constructs a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Export runs by mode and terminal status.",
		}, []string{"mode", "status"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Track render jobs by outcome.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of track render jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"format"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last export run finished.",
		}, []string{"mode"}),
	}
	r.registry.MustRegister(r.runs, r.jobs, r.jobDuration, r.lastRun)
	r.registry.MustRegister(collectors.NewGoCollector())
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RunFinished counts a terminal run.
func (r *Recorder) RunFinished(mode, status string, at time.Time) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(mode, status).Inc()
	r.lastRun.WithLabelValues(mode).Set(float64(at.Unix()))
}

// JobFinished counts a settled job and observes its duration when known.
func (r *Recorder) JobFinished(status, format string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(status).Inc()
	if elapsed > 0 {
		r.jobDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	}
}

// WriteTextfile writes the current metrics to path atomically. An empty path
// is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
