package render

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackexport/internal/logging"
	"trackexport/internal/preflight"
)

var commandContext = exec.CommandContext

// maxOutputLine bounds one line of engine output. Longer lines are skipped
// and the rest of the output is drained so the engine never blocks.
const maxOutputLine = 1 << 20

// Snapshotter serializes the project as the engine should see it, including
// current mute flags. *project.Project satisfies it.
type Snapshotter interface {
	Marshal() ([]byte, error)
}

// ProgressUpdate captures one engine progress event.
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBinary overrides the default engine binary name.
func WithBinary(binary string) EngineOption {
	return func(e *Engine) {
		if strings.TrimSpace(binary) != "" {
			e.binary = strings.TrimSpace(binary)
		}
	}
}

// WithTempDir sets where project snapshots are written.
func WithTempDir(dir string) EngineOption {
	return func(e *Engine) {
		e.tempDir = dir
	}
}

// WithLogger attaches a logger to renderers created by the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine creates renderers that shell out to the render engine binary.
type Engine struct {
	binary  string
	tempDir string
	project Snapshotter
	logger  *slog.Logger
}

// NewEngine constructs an Engine rendering the given project.
func NewEngine(project Snapshotter, opts ...EngineOption) *Engine {
	e := &Engine{binary: "lmms", project: project, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "render-engine")
	return e
}

// Binary returns the configured engine binary.
func (e *Engine) Binary() string { return e.binary }

// Factory adapts the engine to the Factory signature.
func (e *Engine) Factory() Factory {
	return func(settings Settings, outputPath string) Renderer {
		return e.New(settings, outputPath)
	}
}

// New prepares a renderer. Preparation problems are not returned; they make
// the renderer report Ready() == false.
func (e *Engine) New(settings Settings, outputPath string) Renderer {
	job := &engineJob{
		engine:   e,
		settings: settings,
		path:     outputPath,
		done:     make(chan struct{}),
		logger:   e.logger.With(logging.String(logging.FieldOutputPath, outputPath)),
	}
	job.readyErr = e.prepare(settings, outputPath)
	if job.readyErr != nil {
		job.logger.Debug("renderer not ready", logging.Error(job.readyErr))
	}
	return job
}

func (e *Engine) prepare(settings Settings, outputPath string) error {
	if e.project == nil {
		return errors.New("no project to render")
	}
	if !settings.Format.Valid() {
		return fmt.Errorf("unsupported format %q", settings.Format)
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	return preflight.CheckOutputFile("Output file", outputPath).Err()
}

type engineJob struct {
	engine   *Engine
	settings Settings
	path     string
	readyErr error
	logger   *slog.Logger

	mu         sync.Mutex
	started    bool
	running    bool
	finished   bool
	percent    int
	cancel     context.CancelFunc
	aborted    bool
	result     Result
	onFinished []func(Result)
	onProgress []func(int)
	done       chan struct{}
}

func (j *engineJob) Ready() bool { return j.readyErr == nil }

func (j *engineJob) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *engineJob) Progress() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.percent
}

func (j *engineJob) OnFinished(fn func(Result)) {
	if fn == nil {
		return
	}
	j.mu.Lock()
	if j.finished {
		res := j.result
		j.mu.Unlock()
		fn(res)
		return
	}
	j.onFinished = append(j.onFinished, fn)
	j.mu.Unlock()
}

func (j *engineJob) OnProgress(fn func(int)) {
	if fn == nil {
		return
	}
	j.mu.Lock()
	j.onProgress = append(j.onProgress, fn)
	j.mu.Unlock()
}

func (j *engineJob) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return ErrAlreadyStarted
	}
	j.started = true
	if j.readyErr != nil {
		j.mu.Unlock()
		err := fmt.Errorf("%w: %v", ErrNotReady, j.readyErr)
		j.finish(Result{Path: j.path, Err: err})
		return err
	}
	if j.aborted {
		j.mu.Unlock()
		j.finish(Result{Path: j.path, Err: ErrAborted})
		return ErrAborted
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = true
	j.mu.Unlock()

	startedAt := time.Now()
	snapshot, err := j.writeSnapshot()
	if err != nil {
		cancel()
		j.finish(Result{Path: j.path, Err: err, Elapsed: time.Since(startedAt)})
		return err
	}

	cmd := commandContext(runCtx, j.engine.binary, j.args(snapshot)...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		_ = os.Remove(snapshot)
		err = fmt.Errorf("stdout pipe: %w", err)
		j.finish(Result{Path: j.path, Err: err})
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		cancel()
		_ = os.Remove(snapshot)
		err = fmt.Errorf("start render engine: %w", err)
		j.finish(Result{Path: j.path, Err: err})
		return err
	}
	j.logger.Debug("render engine started", logging.String("binary", j.engine.binary))

	go func() {
		defer cancel()
		defer os.Remove(snapshot)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
		lastLine := j.consume(scanner)
		_, _ = io.Copy(io.Discard, stdout)
		waitErr := cmd.Wait()

		res := Result{Path: j.path, Elapsed: time.Since(startedAt)}
		switch {
		case j.wasAborted(), waitErr != nil && ctx.Err() != nil:
			res.Err = ErrAborted
		case waitErr != nil:
			if lastLine != "" {
				res.Err = fmt.Errorf("render engine failed: %w: %s", waitErr, lastLine)
			} else {
				res.Err = fmt.Errorf("render engine failed: %w", waitErr)
			}
		default:
			j.setPercent(100)
		}
		j.finish(res)
	}()
	return nil
}

// consume reads progress lines until EOF and returns the last non-JSON line,
// which usually carries the engine's error message.
func (j *engineJob) consume(scanner *bufio.Scanner) string {
	var lastLine string
	for scanner.Scan() {
		line := scanner.Bytes()
		var payload struct {
			Percent *float64 `json:"percent"`
			Stage   string   `json:"stage"`
			Message string   `json:"message"`
		}
		if err := json.Unmarshal(line, &payload); err != nil || payload.Percent == nil {
			if text := strings.TrimSpace(string(line)); text != "" {
				lastLine = text
			}
			continue
		}
		j.setPercent(int(*payload.Percent))
	}
	if err := scanner.Err(); err != nil {
		j.logger.Debug("read render engine output", logging.Error(err))
	}
	return lastLine
}

func (j *engineJob) setPercent(percent int) {
	percent = max(0, min(100, percent))
	j.mu.Lock()
	if percent == j.percent {
		j.mu.Unlock()
		return
	}
	j.percent = percent
	listeners := append([]func(int){}, j.onProgress...)
	j.mu.Unlock()
	for _, fn := range listeners {
		fn(percent)
	}
}

func (j *engineJob) writeSnapshot() (string, error) {
	data, err := j.engine.project.Marshal()
	if err != nil {
		return "", fmt.Errorf("snapshot project: %w", err)
	}
	file, err := os.CreateTemp(j.engine.tempDir, "trackexport-*.yaml")
	if err != nil {
		return "", fmt.Errorf("create project snapshot: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("write project snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("close project snapshot: %w", err)
	}
	return file.Name(), nil
}

func (j *engineJob) args(snapshot string) []string {
	s := j.settings
	args := []string{
		"render",
		"--project", snapshot,
		"--output", j.path,
		"--format", s.Format.String(),
		"--samplerate", strconv.Itoa(s.Output.SampleRate),
		"--interpolation", s.Quality.Interpolation.String(),
		"--oversampling", s.Quality.Oversampling.String(),
	}
	if s.Format.Lossy() {
		args = append(args, "--bitrate", strconv.Itoa(s.Output.BitrateKbps))
	} else {
		args = append(args, "--depth", s.Output.Depth.String())
	}
	if !s.Output.Stereo {
		args = append(args, "--mono")
	}
	if s.ExportLoop {
		args = append(args, "--loop")
	}
	if s.RenderBetweenMarkers {
		args = append(args, "--markers")
	}
	return append(args, "--progress-json")
}

func (j *engineJob) Abort() {
	j.mu.Lock()
	j.aborted = true
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (j *engineJob) wasAborted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.aborted
}

func (j *engineJob) Wait() error {
	j.mu.Lock()
	started := j.started
	j.mu.Unlock()
	if !started {
		if j.readyErr != nil {
			return fmt.Errorf("%w: %v", ErrNotReady, j.readyErr)
		}
		return ErrNotStarted
	}
	<-j.done
	return j.result.Err
}

func (j *engineJob) finish(res Result) {
	j.mu.Lock()
	if j.finished {
		j.mu.Unlock()
		return
	}
	j.finished = true
	j.running = false
	j.result = res
	callbacks := j.onFinished
	j.onFinished = nil
	j.mu.Unlock()
	close(j.done)
	for _, fn := range callbacks {
		fn(res)
	}
}

var (
	_ Renderer         = (*engineJob)(nil)
	_ ProgressNotifier = (*engineJob)(nil)
)
