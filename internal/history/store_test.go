package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trackexport/internal/history"
	"trackexport/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	run := history.Run{
		ID:          "run-1",
		Project:     "Demo",
		Mode:        history.ModeStems,
		Format:      "wav",
		Destination: cfg.Paths.OutputDir,
		Total:       2,
	}
	if err := store.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.StartJob(ctx, "run-1", 1, "Lead 1", "/out/1_Lead.wav"); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	if err := store.FinishJob(ctx, "run-1", 1, history.JobExported, ""); err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}
	if err := store.StartJob(ctx, "run-1", 2, "Bass!!", "/out/2_Bass.wav"); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	if err := store.FinishJob(ctx, "run-1", 2, history.JobFailed, "disk full"); err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", history.RunDone, 2, 1, 1, ""); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	fetched, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected run to be found")
	}
	if fetched.Status != history.RunDone || fetched.Exported != 1 || fetched.Failed != 1 || fetched.Mode != history.ModeStems {
		t.Fatalf("unexpected run: %#v", fetched)
	}
	if fetched.FinishedAt == nil || fetched.Duration() < 0 {
		t.Fatalf("expected finished timestamp, got %#v", fetched)
	}

	jobs, err := store.Jobs(ctx, "run-1")
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Seq != 1 || jobs[0].Status != history.JobExported {
		t.Fatalf("unexpected first job: %#v", jobs[0])
	}
	if jobs[1].Status != history.JobFailed || jobs[1].ErrorMessage != "disk full" {
		t.Fatalf("unexpected second job: %#v", jobs[1])
	}
}

func TestGetRunMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	run, err := store.GetRun(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %#v", run)
	}
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "middle", "new"} {
		run := history.Run{
			ID:          id,
			Project:     "Demo",
			Mode:        history.ModeSingle,
			Format:      "ogg",
			Destination: "/out/demo.ogg",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.BeginRun(ctx, run); err != nil {
			t.Fatalf("BeginRun %s failed: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "middle" {
		t.Fatalf("unexpected runs: %v", runIDs(runs))
	}
	if runs[0].Status != history.RunRunning {
		t.Fatalf("expected running status, got %q", runs[0].Status)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all runs, got %v", runIDs(all))
	}
}

func TestFinishUnknownRunFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	if err := store.FinishRun(context.Background(), "ghost", history.RunDone, 0, 0, 0, ""); err == nil {
		t.Fatal("expected error for unknown run")
	}
	if err := store.FinishJob(context.Background(), "ghost", 1, history.JobExported, ""); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestClearRemovesRunsAndJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if err := store.BeginRun(ctx, history.Run{ID: "run-1", Project: "Demo", Mode: history.ModeStems, Format: "wav", Destination: "/out"}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.StartJob(ctx, "run-1", 1, "Lead", "/out/1_Lead.wav"); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 run removed, got %d", removed)
	}
	jobs, err := store.Jobs(ctx, "run-1")
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected jobs removed, got %d", len(jobs))
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.BeginRun(context.Background(), history.Run{ID: "persisted", Project: "Demo", Mode: history.ModeStems, Format: "flac", Destination: "/out"}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	run, err := reopened.GetRun(context.Background(), "persisted")
	if err != nil || run == nil {
		t.Fatalf("expected persisted run, got %v (err=%v)", run, err)
	}
	if reopened.Path() != cfg.Paths.HistoryDB {
		t.Fatalf("unexpected path %q", reopened.Path())
	}
}

func TestOpenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	if _, err := history.Open(cfg); !errors.Is(err, history.ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func runIDs(runs []*history.Run) []string {
	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.ID
	}
	return ids
}
