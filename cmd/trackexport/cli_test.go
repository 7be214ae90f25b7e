package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"trackexport/internal/config"
	"trackexport/internal/export"
	"trackexport/internal/multirender"
	"trackexport/internal/project"
	"trackexport/internal/testsupport"
)

type cliTestEnv struct {
	cfg         *config.Config
	configPath  string
	projectPath string
	baseDir     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithFakeEngine(), testsupport.WithMetricsTextfile())
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TRACKEXPORT_ENGINE", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:         cfg,
		configPath:  configPath,
		projectPath: testsupport.WriteProject(t, base, testsupport.DemoProject()),
		baseDir:     base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestStemsCommandExportsEveryAudibleTrack(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "stems", env.projectPath)
	if err != nil {
		t.Fatalf("stems: %v\n%s", err, out)
	}
	requireContains(t, out, "Done: 4 of 4 tracks exported")
	requireContains(t, out, "1_Lead.wav")
	for _, name := range []string{"1_Lead.wav", "2_Bass.wav", "3_Drums.wav", "4_PatternA.wav"} {
		if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, name)); err != nil {
			t.Fatalf("expected stem %s: %v", name, err)
		}
	}
	if _, err := os.Stat(env.cfg.Metrics.Textfile); err != nil {
		t.Fatalf("expected metrics textfile: %v", err)
	}
}

func TestStemsCommandReportsFailedTracks(t *testing.T) {
	env := setupCLITestEnv(t)
	proj := &project.Project{
		Name: "Broken",
		Tracks: project.TrackSet{Main: []*project.Track{
			project.NewTrack("Lead", project.KindInstrument, false),
			project.NewTrack("failing", project.KindInstrument, false),
		}},
	}
	dir := t.TempDir()
	path := testsupport.WriteProject(t, dir, proj)

	out, _, err := runCLI(t, env.configPath, "stems", path, dir, "--wait")
	if !errors.Is(err, errIncomplete) {
		t.Fatalf("expected errIncomplete, got %v", err)
	}
	if exitCode(err) != 1 {
		t.Fatalf("unexpected exit code %d", exitCode(err))
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "1 of 2 tracks exported, 1 failed")
}

func TestRenderCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.cfg.Paths.OutputDir, "mix.ogg")

	out, _, err := runCLI(t, env.configPath, "render", env.projectPath, target, "--json", "--bitrate", "320")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var result exportOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if result.Mode != "single" || result.Format != "ogg" || result.Exported != 1 || result.Target != target {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RunID == "" {
		t.Fatal("expected run id")
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected mixdown: %v", err)
	}
}

func TestRenderCommandDefaultsToOutputDir(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "render", env.projectPath, "--format", "flac")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, out, "Done: 1 of 1 tracks exported")
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.OutputDir, "project.flac")); err != nil {
		t.Fatalf("expected project.flac: %v", err)
	}
}

func TestRenderCommandRejectsUnknownFormat(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "render", env.projectPath, "--format", "aiff")
	if !errors.Is(err, multirender.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	if exitCode(err) != 2 {
		t.Fatalf("unexpected exit code %d", exitCode(err))
	}
}

func TestHistoryCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env.configPath, "stems", env.projectPath); err != nil {
		t.Fatalf("stems: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []runRow
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Status != "done" || runs[0].Exported != 4 || runs[0].Mode != "stems" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	out, _, err = runCLI(t, env.configPath, "history", "show", runs[0].ID)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "Pattern A")
	requireContains(t, out, "4 of 4 exported")

	out, _, err = runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history table: %v", err)
	}
	requireContains(t, out, "Stems")

	out, _, err = runCLI(t, env.configPath, "history", "clear")
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, out, "Removed 1 export run(s)")
}

func TestLogsCommandShowsRunLog(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "render", env.projectPath, "--json")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var result exportOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}

	out, _, err = runCLI(t, env.configPath, "logs", result.RunID[:8], "-n", "200")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "export run finished")
	requireContains(t, out, result.RunID)
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.HistoryDB = ""
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, env.configPath, "history")
	if !errors.Is(err, errHistoryDisabled) {
		t.Fatalf("expected errHistoryDisabled, got %v", err)
	}
}

func TestTracksCommandShowsPlannedStems(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "tracks", env.projectPath, "--json", "--format", "mp3")
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	var rows []trackRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode tracks: %v\n%s", err, out)
	}
	stems := map[string]string{}
	for _, r := range rows {
		stems[r.Name] = r.Stem
	}
	if stems["Lead 1"] != "1_Lead.mp3" || stems["Pattern A"] != "4_PatternA.mp3" {
		t.Fatalf("unexpected stems: %v", stems)
	}
	if stems["Vocals"] != "" || stems["Filter Sweep"] != "" {
		t.Fatalf("muted and automation tracks must not be planned: %v", stems)
	}

	proj, err := project.Load(env.projectPath)
	if err != nil {
		t.Fatalf("reload project: %v", err)
	}
	if proj.Tracks.Main[0].Muted() {
		t.Fatal("listing tracks must not change the project")
	}
}

func TestFormatsCommand(t *testing.T) {
	out, _, err := runCLI(t, "", "formats")
	if err != nil {
		t.Fatalf("formats: %v", err)
	}
	requireContains(t, out, "Compressed OGG-File (*.ogg)")
	requireContains(t, out, "flac")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "[OK]")

	env.cfg.Render.EngineBinary = "trackexport-missing-engine"
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err = runCLI(t, env.configPath, "check")
	if err == nil {
		t.Fatalf("expected check failure:\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.configPath, "test-notify"); err == nil {
		t.Fatal("expected error without a topic")
	}

	bodies := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
	}))
	defer server.Close()
	env.cfg.Notifications.NtfyTopic = server.URL
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	requireContains(t, <-bodies, "Notification system test")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{multirender.ErrAborted, 130},
		{multirender.ErrInvalidSettings, 2},
		{export.ErrDestinationBusy, 3},
		{errors.New("boom"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
