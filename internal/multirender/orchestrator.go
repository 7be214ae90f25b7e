package multirender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trackexport/internal/logging"
	"trackexport/internal/project"
	"trackexport/internal/render"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger. Run and job fields are taken from the
// context given to Start.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers the presentation layer. Observers that also
// implement JobObserver receive per-job events.
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithSynchronous makes Start drive the whole run on the caller's goroutine,
// blocking on each renderer's Wait. Only headless callers should use it. Abort
// still returns without waiting for a renderer that ignores it.
func WithSynchronous() Option {
	return func(o *Orchestrator) {
		o.synchronous = true
	}
}

// Orchestrator renders each eligible track of a track set to its own file.
//
// Tracks are borrowed from the caller. The orchestrator only changes the mute
// flag of tracks it selected and assumes nothing else changes them while a
// run is active.
type Orchestrator struct {
	tracks      project.TrackSet
	settings    render.Settings
	dir         string
	factory     render.Factory
	base        *slog.Logger
	logger      *slog.Logger
	observer    Observer
	synchronous bool

	mu        sync.Mutex
	started   bool
	state     State
	jobs      []Job
	pending   []Job
	active    render.Renderer
	current   Job
	completed int
	exported  int
	failures  []Failure
	aborting  bool
	reason    string
	err       error

	progressMu sync.Mutex
	sampler    *logging.ProgressSampler

	abortOnce sync.Once
	abortCh   chan struct{}
	done      chan struct{}
}

// New constructs an orchestrator. Nothing is selected or muted until Start.
// dir must already exist; the orchestrator never creates it.
func New(tracks project.TrackSet, settings render.Settings, dir string, factory render.Factory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tracks:   tracks,
		settings: settings,
		dir:      dir,
		factory:  factory,
		logger:   logging.NewNop(),
		observer: nopObserver{},
		sampler:  logging.NewProgressSampler(10),
		abortCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.base = logging.NewComponentLogger(o.logger, "multirender")
	o.logger = o.base
	return o
}

// Start selects the eligible tracks and begins rendering them.
//
// An unresolved format or invalid settings abort the run before any track is
// touched. With no eligible tracks the run is Done when Start returns. Unless
// WithSynchronous was given, Start returns as soon as the first job has been
// handed to its goroutine. Cancelling ctx aborts the run.
func (o *Orchestrator) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	o.mu.Lock()
	if o.started {
		state := o.state
		o.mu.Unlock()
		if state == StateAborted {
			return ErrAborted
		}
		return ErrAlreadyStarted
	}
	o.started = true
	o.logger = logging.WithContext(ctx, o.base)
	if err := o.checkSettings(); err != nil {
		o.mu.Unlock()
		o.terminate(StateAborted, err.Error(), err)
		return err
	}

	jobs := SelectTracks(o.tracks)
	ext := o.settings.Format.Extension()
	for i := range jobs {
		jobs[i].Path = OutputPath(o.dir, jobs[i].Seq, jobs[i].Track.Name(), ext)
	}
	o.jobs = jobs
	o.pending = append([]Job(nil), jobs...)
	if len(jobs) == 0 {
		o.mu.Unlock()
		o.logger.Info("no eligible tracks to export", logging.String("output_dir", o.dir))
		o.terminate(StateDone, "", nil)
		return nil
	}
	o.state = StateRunning
	o.mu.Unlock()

	o.logger.Info(
		"stem export started",
		logging.Int(logging.FieldJobCount, len(jobs)),
		logging.String(logging.FieldFormat, o.settings.Format.String()),
		logging.String("output_dir", o.dir),
	)
	stop := context.AfterFunc(ctx, func() {
		o.requestAbort(context.Cause(ctx).Error())
	})
	if o.synchronous {
		o.run(ctx, stop)
		return o.Err()
	}
	go o.run(ctx, stop)
	return nil
}

func (o *Orchestrator) checkSettings() error {
	if !o.settings.Format.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, o.settings.Format)
	}
	if err := o.settings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, stop func() bool) {
	defer stop()
	for {
		job, ok := o.next()
		if !ok {
			break
		}
		o.runJob(ctx, job)
	}

	o.mu.Lock()
	aborting, reason := o.aborting, o.reason
	o.mu.Unlock()
	if aborting {
		o.terminate(StateAborted, reason, ErrAborted)
		return
	}
	o.terminate(StateDone, "", nil)
}

// next pops the first pending job. It reports false once the queue is empty
// or an abort was requested.
func (o *Orchestrator) next() (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.aborting || len(o.pending) == 0 {
		return Job{}, false
	}
	job := o.pending[0]
	o.pending = o.pending[1:]
	o.current = job
	return job, true
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) {
	ctx = logging.WithJobSeq(ctx, job.Seq)
	logger := logging.WithContext(ctx, o.base).With(
		logging.String(logging.FieldTrack, job.Track.Name()),
		logging.String(logging.FieldOutputPath, job.Path),
	)

	release := unmute(job.Track)
	defer release()
	o.jobStarted(job)

	renderer := o.factory(o.settings, job.Path)
	if renderer == nil || !renderer.Ready() {
		release()
		logging.WarnWithContext(logger, "renderer not ready; skipping track", "renderer_not_ready",
			logging.String(logging.FieldErrorHint, "check the output directory is writable and the settings are supported"),
			logging.String(logging.FieldImpact, "track was not exported"),
		)
		o.settle(job, fmt.Errorf("%w: %s", ErrRendererNotReady, job.Path), logger, 0)
		return
	}

	finished := make(chan render.Result, 1)
	renderer.OnFinished(func(res render.Result) {
		select {
		case finished <- res:
		default:
		}
	})
	if notifier, ok := renderer.(render.ProgressNotifier); ok {
		notifier.OnProgress(func(percent int) {
			o.reportProgress(job, percent, logger)
		})
	}

	if !o.activate(job, renderer) {
		release()
		o.drop(job, logger)
		return
	}
	logger.Info("rendering track", logging.Int(logging.FieldJobCount, len(o.jobs)))
	o.observer.Progress(o.Progress())

	// Only requestAbort stops the renderer; a job cut short by ctx is dropped.
	startedAt := time.Now()
	if err := renderer.Start(context.WithoutCancel(ctx)); err != nil {
		release()
		if o.abortRequested() {
			o.drop(job, logger)
			return
		}
		o.settle(job, jobError(err), logger, time.Since(startedAt))
		return
	}

	aborted, err := o.await(renderer, finished)
	release()
	if aborted {
		o.drop(job, logger)
		return
	}
	o.settle(job, err, logger, time.Since(startedAt))
}

// await blocks until the renderer's completion notification or an abort and
// reports whether the job was cut short.
func (o *Orchestrator) await(renderer render.Renderer, finished <-chan render.Result) (bool, error) {
	if o.synchronous {
		waited := make(chan render.Result, 1)
		go func() {
			waited <- render.Result{Err: renderer.Wait()}
		}()
		finished = waited
	}
	select {
	case res := <-finished:
		if res.Err != nil && o.abortRequested() {
			return true, nil
		}
		return false, jobError(res.Err)
	case <-o.abortCh:
		renderer.Abort()
		return true, nil
	}
}

func jobError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, render.ErrNotReady):
		return fmt.Errorf("%w: %w", ErrRendererNotReady, err)
	default:
		return fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
}

// activate records the in-flight renderer unless an abort has already been
// requested.
func (o *Orchestrator) activate(job Job, renderer render.Renderer) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.aborting {
		return false
	}
	o.state = StateRendering
	o.active = renderer
	o.current = job
	return true
}

// settle records a job whose renderer reported completion or never started.
func (o *Orchestrator) settle(job Job, err error, logger *slog.Logger, elapsed time.Duration) {
	o.mu.Lock()
	o.state = StateSettling
	o.active = nil
	o.completed++
	if err == nil {
		o.exported++
	} else {
		o.failures = append(o.failures, Failure{Seq: job.Seq, Track: job.Track.Name(), Path: job.Path, Err: err})
	}
	o.mu.Unlock()

	if err == nil {
		logger.Info("track exported", logging.Duration("elapsed", elapsed))
	} else if !errors.Is(err, ErrRendererNotReady) {
		logging.WarnWithContext(logger, "track export failed", "render_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the render engine output for this track"),
			logging.String(logging.FieldImpact, "track was not exported; remaining tracks continue"),
		)
	}
	o.jobFinished(job, err)
	o.observer.Progress(o.Progress())
}

// drop releases an active job that was cut short by an abort. It does not
// count as completed.
func (o *Orchestrator) drop(job Job, logger *slog.Logger) {
	o.mu.Lock()
	o.active = nil
	o.mu.Unlock()
	logger.Info("track render abandoned")
	o.jobFinished(job, ErrAborted)
}

func (o *Orchestrator) terminate(state State, reason string, err error) {
	o.mu.Lock()
	o.state = state
	o.reason = reason
	o.err = err
	o.pending = nil
	o.active = nil
	o.current = Job{}
	summary := o.summaryLocked()
	o.mu.Unlock()

	if state == StateAborted {
		logging.WarnWithContext(o.logger, "stem export aborted", "export_aborted",
			logging.String("reason", reason),
			logging.Int("completed", summary.Completed),
			logging.Int(logging.FieldJobCount, summary.Total),
			logging.String(logging.FieldImpact, "remaining tracks were not exported"),
		)
		o.observer.Aborted(reason, summary)
	} else {
		o.logger.Info("stem export finished",
			logging.Int("exported", summary.Exported),
			logging.Int("failed", len(summary.Failures)),
			logging.Int(logging.FieldJobCount, summary.Total),
		)
		o.observer.Finished(summary)
	}
	close(o.done)
}

func (o *Orchestrator) reportProgress(job Job, percent int, logger *slog.Logger) {
	p := o.Progress()
	if p.State != StateRendering || p.Seq != job.Seq {
		return
	}
	o.progressMu.Lock()
	emit := o.sampler.ShouldLog(job.Seq, percent)
	o.progressMu.Unlock()
	if emit {
		logger.Debug("render progress", logging.Int("percent", percent), logging.Int("overall", p.Overall()))
	}
	o.observer.Progress(p)
}

func (o *Orchestrator) jobStarted(job Job) {
	if jo, ok := o.observer.(JobObserver); ok {
		jo.JobStarted(job)
	}
}

func (o *Orchestrator) jobFinished(job Job, err error) {
	if jo, ok := o.observer.(JobObserver); ok {
		jo.JobFinished(job, err)
	}
}

func (o *Orchestrator) requestAbort(reason string) {
	o.abortOnce.Do(func() {
		o.mu.Lock()
		o.aborting = true
		o.reason = reason
		active := o.active
		o.mu.Unlock()
		close(o.abortCh)
		if active != nil {
			active.Abort()
		}
	})
}

func (o *Orchestrator) abortRequested() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.aborting
}

// Abort cancels the run and returns once the active track is muted again and
// the run is Aborted. Pending jobs are dropped. Aborting before Start marks
// the orchestrator Aborted without touching any track.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	if !o.started {
		o.started = true
		o.mu.Unlock()
		o.terminate(StateAborted, "aborted before start", ErrAborted)
		return
	}
	terminal := o.state.Terminal()
	o.mu.Unlock()
	if terminal {
		return
	}
	o.requestAbort("aborted")
	<-o.done
}

// Close aborts an active run and is a no-op otherwise.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	active := o.started && !o.state.Terminal()
	o.mu.Unlock()
	if active {
		o.Abort()
	}
	return nil
}

// Wait blocks until the run is Done or Aborted, or ctx ends. It returns the
// run's terminal error: nil when Done, ErrAborted or ErrInvalidFormat and
// friends otherwise.
func (o *Orchestrator) Wait(ctx context.Context) (Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-o.done:
		return o.Summary(), o.Err()
	case <-ctx.Done():
		return o.Summary(), ctx.Err()
	}
}

// Done is closed once the run reaches a terminal state.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Err returns the terminal error of a finished run, nil otherwise.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Jobs returns the jobs selected by Start, in render order.
func (o *Orchestrator) Jobs() []Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Job(nil), o.jobs...)
}

// Progress reports the run's progress. It is safe to call at any time; before
// Start it reports an empty Idle run.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	p := Progress{State: o.state, Completed: o.completed, Total: len(o.jobs)}
	active, current := o.active, o.current
	o.mu.Unlock()
	if p.State == StateRendering && active != nil {
		p.Percent = active.Progress()
		p.Current = current.Track.Name()
		p.Seq = current.Seq
	}
	return p
}

// Summary reports the run outcome so far.
func (o *Orchestrator) Summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.summaryLocked()
}

func (o *Orchestrator) summaryLocked() Summary {
	return Summary{
		State:     o.state,
		Total:     len(o.jobs),
		Completed: o.completed,
		Exported:  o.exported,
		Failures:  append([]Failure(nil), o.failures...),
		Reason:    o.reason,
	}
}

// unmute opens a track for rendering and returns the func that mutes it
// again. The returned func is safe to call more than once.
func unmute(track *project.Track) func() {
	track.SetMuted(false)
	var once sync.Once
	return func() {
		once.Do(func() { track.SetMuted(true) })
	}
}
