package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"trackexport/internal/config"
	"trackexport/internal/history"
	"trackexport/internal/logging"
	"trackexport/internal/metrics"
	"trackexport/internal/multirender"
	"trackexport/internal/notifications"
	"trackexport/internal/preflight"
	"trackexport/internal/project"
	"trackexport/internal/render"
)

// LockFileName is created in the destination directory for the duration of a run.
const LockFileName = ".trackexport.lock"

// ErrDestinationBusy is returned when another export holds the destination lock.
var ErrDestinationBusy = errors.New("destination is locked by another export")

// FactoryBuilder builds the renderer factory for a project.
type FactoryBuilder func(p *project.Project, logger *slog.Logger) render.Factory

// Request describes one export.
type Request struct {
	Project *project.Project
	// Settings carries quality and output settings. Its Format is used as the
	// fallback when neither Format nor the target names one.
	Settings render.Settings
	// Format is an explicit format name, typically from a flag.
	Format string
	// Target is the output file (single) or destination directory (Multi).
	Target string
	Multi  bool
	// Synchronous drives the run on the caller's goroutine with Renderer.Wait.
	Synchronous bool
}

// Result reports the outcome of Run.
type Result struct {
	RunID   string
	Target  string
	Format  render.Format
	Summary multirender.Summary
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFactoryBuilder replaces the render engine factory (used in tests).
func WithFactoryBuilder(builder FactoryBuilder) Option {
	return func(c *Coordinator) {
		if builder != nil {
			c.factory = builder
		}
	}
}

// WithHistory records runs in the export ledger.
func WithHistory(store *history.Store) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithMetrics counts runs and jobs; the textfile is written after each run
// when the config names one.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *Coordinator) {
		c.metrics = recorder
	}
}

// WithNotifier announces finished and aborted runs.
func WithNotifier(notifier notifications.Service) Option {
	return func(c *Coordinator) {
		c.notifier = notifier
	}
}

// WithObserver registers the presenter that receives progress and the final summary.
func WithObserver(observer multirender.Observer) Option {
	return func(c *Coordinator) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(next func() string) Option {
	return func(c *Coordinator) {
		if next != nil {
			c.newID = next
		}
	}
}

// Coordinator runs exports. One Coordinator runs one export at a time.
type Coordinator struct {
	cfg      *config.Config
	base     *slog.Logger
	logger   *slog.Logger
	factory  FactoryBuilder
	store    *history.Store
	metrics  *metrics.Recorder
	notifier notifications.Service
	observer multirender.Observer
	newID    func() string

	mu    sync.Mutex
	abort func()
}

// NewCoordinator constructs a Coordinator that renders through the configured
// engine binary unless WithFactoryBuilder says otherwise.
func NewCoordinator(cfg *config.Config, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		cfg:      cfg,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "export"),
		observer: Fanout(nil),
		newID:    uuid.NewString,
	}
	c.factory = func(p *project.Project, logger *slog.Logger) render.Factory {
		return render.NewEngine(p, render.WithBinary(cfg.Render.EngineBinary), render.WithLogger(logger)).Factory()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs one export. Per-track failures are reported in the summary;
// the returned error covers invalid requests, destination problems and
// aborted runs.
func (c *Coordinator) Run(ctx context.Context, req Request) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Project == nil {
		return Result{}, errors.New("export: project required")
	}
	if strings.TrimSpace(req.Target) == "" {
		return Result{}, errors.New("export: target required")
	}

	format, err := ResolveFormat(req.Format, req.Target, req.Multi, req.Settings.Format)
	if err != nil {
		return Result{}, err
	}
	settings := req.Settings
	settings.Format = format
	if err := settings.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", multirender.ErrInvalidSettings, err)
	}

	target := req.Target
	dir := target
	if !req.Multi {
		target = SingleTarget(target, format)
		dir = filepath.Dir(target)
	}
	if err := preflight.CheckDirectoryAccess("Destination", dir).Err(); err != nil {
		return Result{}, err
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, fmt.Errorf("acquire destination lock: %w", err)
	}
	if !locked {
		return Result{}, fmt.Errorf("%w: %s", ErrDestinationBusy, dir)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	runID := c.newID()
	startedAt := time.Now()
	ctx = logging.WithRunID(ctx, runID)
	runLog, closer, err := logging.NewRunLog(c.base, c.cfg.Paths.LogDir, runID)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "run log unavailable", "run_log_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is only logged to the main log"),
		)
		runLog = c.base
	} else {
		defer closer.Close()
	}
	runLogger := logging.WithContext(ctx, runLog)
	logger := logging.NewComponentLogger(runLogger, "export")

	mode := history.ModeSingle
	if req.Multi {
		mode = history.ModeStems
	}
	logger.Info("export run starting",
		logging.String("mode", string(mode)),
		logging.String(logging.FieldFormat, format.String()),
		logging.String("target", target),
		logging.String("project", req.Project.Name),
		logging.Bool("wait", req.Synchronous),
	)

	observers := Fanout{c.observer}
	if c.store != nil {
		run := history.Run{
			ID:          runID,
			Project:     req.Project.Name,
			Mode:        mode,
			Format:      format.String(),
			Destination: target,
		}
		if err := c.store.BeginRun(ctx, run); err != nil {
			logging.WarnWithContext(logger, "history run insert failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run will be missing from export history"),
			)
		} else {
			observers = append(observers, &historyObserver{store: c.store, runID: runID, project: req.Project.Name, logger: logger})
		}
	}
	if c.metrics != nil {
		observers = append(observers, newMetricsObserver(c.metrics, format.String()))
	}

	factory := c.factory(req.Project, runLogger)
	var summary multirender.Summary
	if req.Multi {
		summary, err = c.runStems(ctx, req, settings, target, factory, observers, runLog)
	} else {
		summary, err = c.runSingle(ctx, req, settings, target, factory, observers, logger)
	}

	result := Result{RunID: runID, Target: target, Format: format, Summary: summary}
	c.record(req.Project.Name, mode, result, time.Since(startedAt), logger)
	return result, err
}

func (c *Coordinator) runStems(ctx context.Context, req Request, settings render.Settings, dir string, factory render.Factory, observer multirender.Observer, logger *slog.Logger) (multirender.Summary, error) {
	opts := []multirender.Option{
		multirender.WithLogger(logger),
		multirender.WithObserver(observer),
	}
	if req.Synchronous {
		opts = append(opts, multirender.WithSynchronous())
	}
	orch := multirender.New(req.Project.Tracks, settings, dir, factory, opts...)
	c.setAbort(orch.Abort)
	defer c.setAbort(nil)

	if err := orch.Start(ctx); err != nil {
		return orch.Summary(), err
	}
	<-orch.Done()
	return orch.Summary(), orch.Err()
}

// runSingle renders the whole project to one file. A renderer that cannot be
// prepared ends the run without a file and without an error.
func (c *Coordinator) runSingle(ctx context.Context, req Request, settings render.Settings, target string, factory render.Factory, observer Fanout, logger *slog.Logger) (multirender.Summary, error) {
	job := multirender.Job{Seq: 1, Path: target}
	summary := multirender.Summary{State: multirender.StateDone, Total: 1}

	renderer := factory(settings, target)
	if renderer == nil || !renderer.Ready() {
		logging.WarnWithContext(logger, "renderer not ready; nothing exported", "renderer_not_ready",
			logging.String(logging.FieldOutputPath, target),
			logging.String(logging.FieldErrorHint, "check the output path is writable and the settings are supported"),
			logging.String(logging.FieldImpact, "no file was written"),
		)
		summary.Reason = multirender.ErrRendererNotReady.Error()
		observer.Finished(summary)
		return summary, nil
	}

	finished := make(chan render.Result, 1)
	renderer.OnFinished(func(res render.Result) {
		select {
		case finished <- res:
		default:
		}
	})
	progress := func(percent int) multirender.Progress {
		return multirender.Progress{State: multirender.StateRendering, Percent: percent, Total: 1, Current: req.Project.Name, Seq: 1}
	}
	if notifier, ok := renderer.(render.ProgressNotifier); ok {
		notifier.OnProgress(func(percent int) {
			observer.Progress(progress(percent))
		})
	}

	abortCh := make(chan struct{})
	var once sync.Once
	c.setAbort(func() { once.Do(func() { close(abortCh) }) })
	defer c.setAbort(nil)

	observer.JobStarted(job)
	observer.Progress(progress(0))
	startedAt := time.Now()
	var renderErr error
	if err := renderer.Start(context.WithoutCancel(ctx)); err != nil {
		renderErr = err
	} else if req.Synchronous {
		go func() {
			select {
			case <-abortCh:
				renderer.Abort()
			case <-ctx.Done():
				renderer.Abort()
			case <-finished:
			}
		}()
		renderErr = renderer.Wait()
	} else {
		select {
		case res := <-finished:
			renderErr = res.Err
		case <-abortCh:
			renderer.Abort()
			renderErr = renderer.Wait()
		case <-ctx.Done():
			renderer.Abort()
			renderErr = renderer.Wait()
		}
	}

	summary.Completed = 1
	switch {
	case renderErr == nil:
		summary.Exported = 1
		logger.Info("project exported", logging.String(logging.FieldOutputPath, target), logging.Duration("elapsed", time.Since(startedAt)))
		observer.JobFinished(job, nil)
		observer.Finished(summary)
		return summary, nil
	case errors.Is(renderErr, render.ErrAborted):
		summary.State = multirender.StateAborted
		summary.Completed = 0
		summary.Reason = "aborted"
		if ctx.Err() != nil {
			summary.Reason = context.Cause(ctx).Error()
		}
		observer.JobFinished(job, multirender.ErrAborted)
		observer.Aborted(summary.Reason, summary)
		return summary, multirender.ErrAborted
	default:
		jobErr := fmt.Errorf("%w: %w", multirender.ErrRenderFailed, renderErr)
		summary.Failures = []multirender.Failure{{Seq: 1, Track: req.Project.Name, Path: target, Err: jobErr}}
		logging.WarnWithContext(logger, "project export failed", "render_failed",
			logging.Error(renderErr),
			logging.String(logging.FieldOutputPath, target),
			logging.String(logging.FieldImpact, "no file was written"),
		)
		observer.JobFinished(job, jobErr)
		observer.Finished(summary)
		return summary, nil
	}
}

func (c *Coordinator) record(projectName string, mode history.Mode, result Result, elapsed time.Duration, logger *slog.Logger) {
	summary := result.Summary
	status := history.RunDone
	if summary.State == multirender.StateAborted {
		status = history.RunAborted
	}
	if c.store != nil {
		if err := c.store.FinishRun(context.Background(), result.RunID, status, summary.Total, summary.Exported, len(summary.Failures), summary.Reason); err != nil {
			logging.WarnWithContext(logger, "history run update failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "export history shows this run as still running"),
			)
		}
	}
	if c.metrics != nil {
		c.metrics.RunFinished(string(mode), string(status), time.Now())
		if err := c.metrics.WriteTextfile(c.cfg.Metrics.Textfile); err != nil {
			logging.WarnWithContext(logger, "metrics textfile write failed", "metrics_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "metrics for this run were not published"),
			)
		}
	}
	if c.notifier != nil {
		report := notifications.Report{
			Project:     projectName,
			Mode:        string(mode),
			Format:      result.Format.String(),
			Destination: result.Target,
			Total:       summary.Total,
			Exported:    summary.Exported,
			Failed:      len(summary.Failures),
			Reason:      summary.Reason,
			Duration:    elapsed,
		}
		var err error
		if status == history.RunAborted {
			err = c.notifier.NotifyExportAborted(context.Background(), report)
		} else {
			err = c.notifier.NotifyExportFinished(context.Background(), report)
		}
		if err != nil {
			logging.WarnWithContext(logger, "export notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}
	logger.Info("export run finished",
		logging.String("status", string(status)),
		logging.Int("exported", summary.Exported),
		logging.Int(logging.FieldJobCount, summary.Total),
		logging.Int("failed", len(summary.Failures)),
		logging.Duration("elapsed", elapsed),
	)
}

func (c *Coordinator) setAbort(fn func()) {
	c.mu.Lock()
	c.abort = fn
	c.mu.Unlock()
}

// Abort cancels the run in progress, if any.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	fn := c.abort
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
