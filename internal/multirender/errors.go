package multirender

import "errors"

var (
	// ErrInvalidFormat is returned by Start when no export format was resolved.
	ErrInvalidFormat = errors.New("invalid export format")
	// ErrInvalidSettings is returned by Start when the render settings are out of range.
	ErrInvalidSettings = errors.New("invalid render settings")
	// ErrRendererNotReady marks a job skipped because its renderer could not be prepared.
	ErrRendererNotReady = errors.New("renderer not ready")
	// ErrRenderFailed wraps a failure reported by a renderer's completion notification.
	ErrRenderFailed = errors.New("render failed")
	// ErrAborted reports a run that was cancelled before all jobs settled.
	ErrAborted = errors.New("export aborted")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("orchestrator already started")
)
