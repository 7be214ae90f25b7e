package render

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAborted is reported by a renderer whose job was aborted.
	ErrAborted = errors.New("render aborted")
	// ErrNotReady is returned by Start on a renderer that could not prepare its job.
	ErrNotReady = errors.New("renderer not ready")
	// ErrAlreadyStarted is returned by a second Start on the same renderer.
	ErrAlreadyStarted = errors.New("renderer already started")
	// ErrNotStarted is returned by Wait on a renderer that never started.
	ErrNotStarted = errors.New("renderer not started")
)

// Result describes a finished render job.
type Result struct {
	Path    string
	Err     error
	Elapsed time.Duration
}

// Renderer performs one offline render job.
//
// Start begins the job asynchronously and may be called at most once. The
// OnFinished callbacks fire exactly once per renderer, success or failure,
// from the renderer's own goroutine. Callbacks registered after completion
// are invoked immediately. When Ready reports false the caller must not
// start the renderer; the job is treated as skipped.
type Renderer interface {
	Start(ctx context.Context) error
	Abort()
	Running() bool
	Ready() bool
	Progress() int
	Wait() error
	OnFinished(fn func(Result))
}

// ProgressNotifier is implemented by renderers that push percent updates.
type ProgressNotifier interface {
	OnProgress(fn func(percent int))
}

// Factory constructs a renderer bound to settings and an output path.
type Factory func(settings Settings, outputPath string) Renderer
