package export

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trackexport/internal/history"
	"trackexport/internal/logging"
	"trackexport/internal/metrics"
	"trackexport/internal/multirender"
)

// Fanout forwards run events to every observer in order. Observers that
// implement multirender.JobObserver also receive job events.
type Fanout []multirender.Observer

func (f Fanout) Progress(p multirender.Progress) {
	for _, o := range f {
		o.Progress(p)
	}
}

func (f Fanout) Finished(s multirender.Summary) {
	for _, o := range f {
		o.Finished(s)
	}
}

func (f Fanout) Aborted(reason string, s multirender.Summary) {
	for _, o := range f {
		o.Aborted(reason, s)
	}
}

func (f Fanout) JobStarted(job multirender.Job) {
	for _, o := range f {
		if jo, ok := o.(multirender.JobObserver); ok {
			jo.JobStarted(job)
		}
	}
}

func (f Fanout) JobFinished(job multirender.Job, err error) {
	for _, o := range f {
		if jo, ok := o.(multirender.JobObserver); ok {
			jo.JobFinished(job, err)
		}
	}
}

// jobStatus classifies a job outcome for the ledger and metrics.
func jobStatus(err error) history.JobStatus {
	switch {
	case err == nil:
		return history.JobExported
	case errors.Is(err, multirender.ErrRendererNotReady):
		return history.JobSkipped
	case errors.Is(err, multirender.ErrAborted):
		return history.JobAborted
	default:
		return history.JobFailed
	}
}

// trackName labels a job; whole-project mixdowns carry no track.
func trackName(job multirender.Job, fallback string) string {
	if job.Track == nil {
		return fallback
	}
	return job.Track.Name()
}

type baseObserver struct{}

func (baseObserver) Progress(multirender.Progress) {}

func (baseObserver) Finished(multirender.Summary) {}

func (baseObserver) Aborted(string, multirender.Summary) {}

// historyObserver writes job rows as they start and settle. Ledger errors are
// logged and never interrupt the export.
type historyObserver struct {
	baseObserver
	store   *history.Store
	runID   string
	project string
	logger  *slog.Logger
}

func (h *historyObserver) JobStarted(job multirender.Job) {
	if err := h.store.StartJob(context.Background(), h.runID, job.Seq, trackName(job, h.project), job.Path); err != nil {
		logging.WarnWithContext(h.logger, "history job insert failed", "history_write_failed",
			logging.Int(logging.FieldJobSeq, job.Seq),
			logging.Error(err),
			logging.String(logging.FieldImpact, "export history will be incomplete"),
		)
	}
}

func (h *historyObserver) JobFinished(job multirender.Job, jobErr error) {
	message := ""
	if jobErr != nil {
		message = jobErr.Error()
	}
	if err := h.store.FinishJob(context.Background(), h.runID, job.Seq, jobStatus(jobErr), message); err != nil {
		logging.WarnWithContext(h.logger, "history job update failed", "history_write_failed",
			logging.Int(logging.FieldJobSeq, job.Seq),
			logging.Error(err),
			logging.String(logging.FieldImpact, "export history will be incomplete"),
		)
	}
}

// metricsObserver times each job and feeds the recorder.
type metricsObserver struct {
	baseObserver
	recorder *metrics.Recorder
	format   string

	mu      sync.Mutex
	started map[int]time.Time
}

func newMetricsObserver(recorder *metrics.Recorder, format string) *metricsObserver {
	return &metricsObserver{recorder: recorder, format: format, started: make(map[int]time.Time)}
}

func (m *metricsObserver) JobStarted(job multirender.Job) {
	m.mu.Lock()
	m.started[job.Seq] = time.Now()
	m.mu.Unlock()
}

func (m *metricsObserver) JobFinished(job multirender.Job, err error) {
	m.mu.Lock()
	startedAt, ok := m.started[job.Seq]
	delete(m.started, job.Seq)
	m.mu.Unlock()
	var elapsed time.Duration
	if ok {
		elapsed = time.Since(startedAt)
	}
	m.recorder.JobFinished(string(jobStatus(err)), m.format, elapsed)
}

var (
	_ multirender.JobObserver = Fanout(nil)
	_ multirender.JobObserver = (*historyObserver)(nil)
	_ multirender.JobObserver = (*metricsObserver)(nil)
)
