package export_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"trackexport/internal/config"
	"trackexport/internal/export"
	"trackexport/internal/history"
	"trackexport/internal/logging"
	"trackexport/internal/metrics"
	"trackexport/internal/multirender"
	"trackexport/internal/notifications"
	"trackexport/internal/project"
	"trackexport/internal/render"
	"trackexport/internal/testsupport"
)

func newCoordinator(t *testing.T, cfg *config.Config, factory *testsupport.FakeFactory, opts ...export.Option) *export.Coordinator {
	t.Helper()
	builder := func(*project.Project, *slog.Logger) render.Factory { return factory.Factory() }
	opts = append([]export.Option{
		export.WithFactoryBuilder(builder),
		export.WithRunIDs(func() string { return "run-1" }),
	}, opts...)
	return export.NewCoordinator(cfg, logging.NewNop(), opts...)
}

func defaultSettings(t *testing.T, cfg *config.Config) render.Settings {
	t.Helper()
	settings, err := export.SettingsFromConfig(cfg.Render)
	if err != nil {
		t.Fatalf("SettingsFromConfig returned error: %v", err)
	}
	return settings
}

func TestRunStemsWritesFilesHistoryAndMetrics(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMetricsTextfile())
	store := testsupport.MustOpenHistory(t, cfg)
	factory := testsupport.NewFakeFactory()
	factory.WriteOutput = true
	coord := newCoordinator(t, cfg, factory, export.WithHistory(store), export.WithMetrics(metrics.New()))

	result, err := coord.Run(context.Background(), export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Target:   cfg.Paths.OutputDir,
		Multi:    true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.RunID != "run-1" || result.Format != render.FormatWAV {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Summary.Exported != 4 || result.Summary.State != multirender.StateDone {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	for _, name := range []string{"1_Lead.wav", "2_Bass.wav", "3_Drums.wav", "4_PatternA.wav"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, name)); err != nil {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, export.LockFileName)); !os.IsNotExist(err) {
		t.Fatalf("lock file should be removed after the run, stat err=%v", err)
	}

	run, err := store.GetRun(context.Background(), "run-1")
	if err != nil || run == nil {
		t.Fatalf("expected history run, got %v (err=%v)", run, err)
	}
	if run.Status != history.RunDone || run.Exported != 4 || run.Total != 4 || run.Mode != history.ModeStems {
		t.Fatalf("unexpected history run: %#v", run)
	}
	jobs, err := store.Jobs(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Jobs returned error: %v", err)
	}
	if len(jobs) != 4 || jobs[3].Track != "Pattern A" || jobs[3].Status != history.JobExported {
		t.Fatalf("unexpected history jobs: %d", len(jobs))
	}

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("read metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), `trackexport_jobs_total{status="exported"} 4`) {
		t.Fatalf("metrics textfile missing job counter:\n%s", data)
	}
	runLog, err := os.ReadFile(logging.RunLogPath(cfg.Paths.LogDir, "run-1"))
	if err != nil {
		t.Fatalf("expected run log: %v", err)
	}
	if !strings.Contains(string(runLog), `"job_seq":4`) {
		t.Fatalf("run log should carry job sequence numbers:\n%s", runLog)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(runLog)), "\n") {
		if n := strings.Count(line, `"run_id":"run-1"`); n != 1 {
			t.Fatalf("expected run_id exactly once per record, got %d in %s", n, line)
		}
	}
}

func TestRunStemsRecordsFailuresPerJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	factory := testsupport.NewFakeFactory()
	factory.Fail["3_Drums.wav"] = errors.New("encoder crashed")
	factory.NotReady["4_PatternA.wav"] = true
	coord := newCoordinator(t, cfg, factory, export.WithHistory(store))

	result, err := coord.Run(context.Background(), export.Request{
		Project:     testsupport.DemoProject(),
		Settings:    defaultSettings(t, cfg),
		Target:      cfg.Paths.OutputDir,
		Multi:       true,
		Synchronous: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Summary.Exported != 2 || len(result.Summary.Failures) != 2 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}

	jobs, err := store.Jobs(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Jobs returned error: %v", err)
	}
	want := []history.JobStatus{history.JobExported, history.JobExported, history.JobFailed, history.JobSkipped}
	for i, job := range jobs {
		if job.Status != want[i] {
			t.Fatalf("job %d: got status %q want %q", job.Seq, job.Status, want[i])
		}
	}
	if !strings.Contains(jobs[2].ErrorMessage, "encoder crashed") {
		t.Fatalf("expected failure message, got %q", jobs[2].ErrorMessage)
	}
}

func TestRunSingleDerivesFormatFromTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	factory := testsupport.NewFakeFactory()
	coord := newCoordinator(t, cfg, factory)
	proj := testsupport.DemoProject()
	before := testsupport.MuteStates(proj.Tracks)

	target := filepath.Join(cfg.Paths.OutputDir, "mix.ogg")
	result, err := coord.Run(context.Background(), export.Request{
		Project:  proj,
		Settings: defaultSettings(t, cfg),
		Target:   target,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Format != render.FormatOGG || result.Target != target {
		t.Fatalf("unexpected result: %+v", result)
	}
	renderers := factory.Renderers()
	if len(renderers) != 1 || renderers[0].Settings.Format != render.FormatOGG || renderers[0].Path != target {
		t.Fatalf("unexpected renderers: %d", len(renderers))
	}
	if result.Summary.Exported != 1 || result.Summary.Total != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	after := testsupport.MuteStates(proj.Tracks)
	for name, muted := range before {
		if after[name] != muted {
			t.Fatalf("single export must not change mute state of %s", name)
		}
	}
}

func TestRunSingleAppendsExtensionForExplicitFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	factory := testsupport.NewFakeFactory()
	coord := newCoordinator(t, cfg, factory)

	result, err := coord.Run(context.Background(), export.Request{
		Project:     testsupport.DemoProject(),
		Settings:    defaultSettings(t, cfg),
		Format:      "flac",
		Target:      filepath.Join(cfg.Paths.OutputDir, "mix"),
		Synchronous: true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if filepath.Base(result.Target) != "mix.flac" {
		t.Fatalf("expected extension to be appended, got %q", result.Target)
	}
}

func TestRunSingleNotReadyIsNoopSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	factory := testsupport.NewFakeFactory()
	factory.NotReady["mix.wav"] = true
	coord := newCoordinator(t, cfg, factory)

	result, err := coord.Run(context.Background(), export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Target:   filepath.Join(cfg.Paths.OutputDir, "mix.wav"),
	})
	if err != nil {
		t.Fatalf("not-ready single export should not fail, got %v", err)
	}
	if result.Summary.Exported != 0 || result.Summary.State != multirender.StateDone {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if len(factory.Starts()) != 0 {
		t.Fatal("renderer must not start")
	}
}

func TestRunSingleFailureIsSummarized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	factory := testsupport.NewFakeFactory()
	factory.Fail["mix.wav"] = errors.New("engine crashed")
	coord := newCoordinator(t, cfg, factory)

	result, err := coord.Run(context.Background(), export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Target:   filepath.Join(cfg.Paths.OutputDir, "mix.wav"),
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Summary.Failures) != 1 || !errors.Is(result.Summary.Failures[0].Err, multirender.ErrRenderFailed) {
		t.Fatalf("expected one render failure, got %+v", result.Summary.Failures)
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	factory := testsupport.NewFakeFactory()
	coord := newCoordinator(t, cfg, factory, export.WithHistory(store))

	_, err := coord.Run(context.Background(), export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Format:   "aiff",
		Target:   cfg.Paths.OutputDir,
		Multi:    true,
	})
	if !errors.Is(err, multirender.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if len(factory.Renderers()) != 0 {
		t.Fatal("no renderer may be built for an invalid format")
	}
	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("invalid requests must not be recorded, got %d runs", len(runs))
	}
}

func TestRunFailsWhenDestinationMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	coord := newCoordinator(t, cfg, testsupport.NewFakeFactory())

	_, err := coord.Run(context.Background(), export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Target:   filepath.Join(cfg.Paths.OutputDir, "missing"),
		Multi:    true,
	})
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing destination error, got %v", err)
	}
}

func TestRunFailsWhenDestinationLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	coord := newCoordinator(t, cfg, testsupport.NewFakeFactory())

	held := flock.New(filepath.Join(cfg.Paths.OutputDir, export.LockFileName))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-lock failed: locked=%v err=%v", locked, err)
	}
	t.Cleanup(func() { _ = held.Unlock() })

	_, err = coord.Run(context.Background(), export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Target:   cfg.Paths.OutputDir,
		Multi:    true,
	})
	if !errors.Is(err, export.ErrDestinationBusy) {
		t.Fatalf("expected ErrDestinationBusy, got %v", err)
	}
}

func TestAbortStopsStemRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	factory := testsupport.NewFakeFactory()
	factory.Manual = true
	coord := newCoordinator(t, cfg, factory, export.WithHistory(store))
	proj := testsupport.DemoProject()

	go func() {
		if r := factory.NextStarted(5 * time.Second); r != nil {
			coord.Abort()
		}
	}()

	result, err := coord.Run(context.Background(), export.Request{
		Project:  proj,
		Settings: defaultSettings(t, cfg),
		Target:   cfg.Paths.OutputDir,
		Multi:    true,
	})
	if !errors.Is(err, multirender.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if result.Summary.State != multirender.StateAborted {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if !proj.Tracks.Main[0].Muted() {
		t.Fatal("active track must be muted after abort")
	}
	run, err := store.GetRun(context.Background(), "run-1")
	if err != nil || run == nil || run.Status != history.RunAborted {
		t.Fatalf("expected aborted history run, got %#v (err=%v)", run, err)
	}
	jobs, err := store.Jobs(context.Background(), "run-1")
	if err != nil || len(jobs) != 1 || jobs[0].Status != history.JobAborted {
		t.Fatalf("expected one aborted job, got %d (err=%v)", len(jobs), err)
	}
}

func TestCancelledContextAbortsSingleRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	factory := testsupport.NewFakeFactory()
	factory.Manual = true
	coord := newCoordinator(t, cfg, factory)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if r := factory.NextStarted(5 * time.Second); r != nil {
			cancel()
		}
	}()

	result, err := coord.Run(ctx, export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Target:   filepath.Join(cfg.Paths.OutputDir, "mix.wav"),
	})
	if !errors.Is(err, multirender.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if result.Summary.State != multirender.StateAborted {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
}

func TestCancelledContextAbortsSynchronousSingleRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFakeEngine())
	store := testsupport.MustOpenHistory(t, cfg)
	notifier := &recordingNotifier{}
	coord := export.NewCoordinator(cfg, logging.NewNop(),
		export.WithHistory(store),
		export.WithNotifier(notifier),
		export.WithRunIDs(func() string { return "run-1" }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)

	result, err := coord.Run(ctx, export.Request{
		Project:     testsupport.DemoProject(),
		Settings:    defaultSettings(t, cfg),
		Target:      filepath.Join(cfg.Paths.OutputDir, "slow-mix.wav"),
		Synchronous: true,
	})
	if !errors.Is(err, multirender.ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v (summary %+v)", err, result.Summary)
	}
	if result.Summary.State != multirender.StateAborted || len(result.Summary.Failures) != 0 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Summary.Reason != context.Canceled.Error() {
		t.Fatalf("unexpected abort reason %q", result.Summary.Reason)
	}
	run, err := store.GetRun(context.Background(), "run-1")
	if err != nil || run == nil || run.Status != history.RunAborted {
		t.Fatalf("expected aborted history run, got %#v (err=%v)", run, err)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.aborted) != 1 || len(notifier.finished) != 0 {
		t.Fatalf("expected one abort notice, got finished=%d aborted=%d", len(notifier.finished), len(notifier.aborted))
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	finished []notifications.Report
	aborted  []notifications.Report
}

func (n *recordingNotifier) NotifyExportFinished(_ context.Context, r notifications.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, r)
	return nil
}

func (n *recordingNotifier) NotifyExportAborted(_ context.Context, r notifications.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aborted = append(n.aborted, r)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func TestRunNotifiesWhenFinished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	factory := testsupport.NewFakeFactory()
	factory.Fail["2_Bass.wav"] = errors.New("engine crashed")
	notifier := &recordingNotifier{}
	coord := newCoordinator(t, cfg, factory, export.WithNotifier(notifier))

	if _, err := coord.Run(context.Background(), export.Request{
		Project:  testsupport.DemoProject(),
		Settings: defaultSettings(t, cfg),
		Target:   cfg.Paths.OutputDir,
		Multi:    true,
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(notifier.finished) != 1 || len(notifier.aborted) != 0 {
		t.Fatalf("expected one finished notification, got %d finished %d aborted", len(notifier.finished), len(notifier.aborted))
	}
	report := notifier.finished[0]
	if report.Project != "Demo" || report.Mode != "stems" || report.Format != "wav" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Total != 4 || report.Exported != 3 || report.Failed != 1 || report.Destination != cfg.Paths.OutputDir {
		t.Fatalf("unexpected counts: %+v", report)
	}
}
