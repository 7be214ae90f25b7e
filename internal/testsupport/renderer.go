package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trackexport/internal/render"
)

// FakeFactory builds scripted in-memory renderers and records how they were
// driven. The zero value is not usable; call NewFakeFactory.
type FakeFactory struct {
	// NotReady lists output paths (by base name) whose renderer reports Ready() == false.
	NotReady map[string]bool
	// Fail maps output base names to the error their render completes with.
	Fail map[string]error
	// Manual leaves completion to the test, which receives renderers on Started.
	Manual bool
	// IgnoreAbort makes renderers keep running after Abort until finished manually.
	IgnoreAbort bool
	// WriteOutput creates the output file when a render succeeds.
	WriteOutput bool
	// OnStart runs inside Start, before the renderer is marked running.
	OnStart func(*FakeRenderer)

	// Started receives every renderer whose Start succeeded.
	Started chan *FakeRenderer

	mu        sync.Mutex
	renderers []*FakeRenderer
	starts    []string
	running   int
	overlap   bool
}

// NewFakeFactory constructs a factory whose renderers complete successfully
// as soon as they start.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{
		NotReady: make(map[string]bool),
		Fail:     make(map[string]error),
		Started:  make(chan *FakeRenderer, 128),
	}
}

// Factory adapts the fake to render.Factory.
func (f *FakeFactory) Factory() render.Factory {
	return func(settings render.Settings, outputPath string) render.Renderer {
		r := &FakeRenderer{
			Settings: settings,
			Path:     outputPath,
			factory:  f,
			ready:    !f.NotReady[filepath.Base(outputPath)],
			done:     make(chan struct{}),
		}
		f.mu.Lock()
		f.renderers = append(f.renderers, r)
		f.mu.Unlock()
		return r
	}
}

// Starts returns the output paths of every started renderer, in start order.
func (f *FakeFactory) Starts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starts...)
}

// Overlapped reports whether a renderer was started while another was running.
func (f *FakeFactory) Overlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

// Renderers returns every renderer the factory built.
func (f *FakeFactory) Renderers() []*FakeRenderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeRenderer(nil), f.renderers...)
}

// NextStarted waits for the next started renderer, or returns nil after timeout.
func (f *FakeFactory) NextStarted(timeout time.Duration) *FakeRenderer {
	select {
	case r := <-f.Started:
		return r
	case <-time.After(timeout):
		return nil
	}
}

func (f *FakeFactory) recordStart(r *FakeRenderer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running > 0 {
		f.overlap = true
	}
	f.running++
	f.starts = append(f.starts, r.Path)
}

func (f *FakeFactory) recordFinish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running > 0 {
		f.running--
	}
}

// FakeRenderer is a render.Renderer driven by its FakeFactory or by the test.
type FakeRenderer struct {
	Settings render.Settings
	Path     string

	factory *FakeFactory
	ready   bool

	mu         sync.Mutex
	startCtx   context.Context
	started    bool
	running    bool
	finished   bool
	aborted    bool
	percent    int
	result     render.Result
	onFinished []func(render.Result)
	onProgress []func(int)
	done       chan struct{}
}

func (r *FakeRenderer) Ready() bool { return r.ready }

func (r *FakeRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return render.ErrAlreadyStarted
	}
	r.started = true
	r.startCtx = ctx
	aborted := r.aborted
	r.mu.Unlock()

	if !r.ready {
		r.finish(render.ErrNotReady, false)
		return render.ErrNotReady
	}
	if aborted {
		r.finish(render.ErrAborted, false)
		return render.ErrAborted
	}
	if r.factory.OnStart != nil {
		r.factory.OnStart(r)
	}

	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	r.factory.recordStart(r)

	select {
	case r.factory.Started <- r:
	default:
	}
	if !r.factory.Manual {
		err := r.factory.Fail[filepath.Base(r.Path)]
		go r.Finish(err)
	}
	return nil
}

// Finish completes the render with err.
func (r *FakeRenderer) Finish(err error) {
	if err == nil && r.factory.WriteOutput {
		if writeErr := os.WriteFile(r.Path, []byte("RIFF"), 0o644); writeErr != nil {
			err = writeErr
		}
	}
	r.finish(err, true)
}

func (r *FakeRenderer) finish(err error, wasRunning bool) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.running = false
	if err == nil {
		r.percent = 100
	}
	r.result = render.Result{Path: r.Path, Err: err}
	callbacks := r.onFinished
	r.onFinished = nil
	r.mu.Unlock()

	if wasRunning {
		r.factory.recordFinish()
	}
	close(r.done)
	for _, fn := range callbacks {
		fn(r.result)
	}
}

// SetProgress updates the percent and notifies progress listeners.
func (r *FakeRenderer) SetProgress(percent int) {
	r.mu.Lock()
	r.percent = percent
	listeners := append([]func(int){}, r.onProgress...)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(percent)
	}
}

func (r *FakeRenderer) Abort() {
	r.mu.Lock()
	r.aborted = true
	running := r.running
	r.mu.Unlock()
	if running && !r.factory.IgnoreAbort {
		go r.finish(render.ErrAborted, true)
	}
}

// StartContext returns the context Start was called with.
func (r *FakeRenderer) StartContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startCtx
}

// Aborted reports whether Abort was called.
func (r *FakeRenderer) Aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

func (r *FakeRenderer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *FakeRenderer) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

func (r *FakeRenderer) Wait() error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return render.ErrNotStarted
	}
	<-r.done
	return r.result.Err
}

func (r *FakeRenderer) OnFinished(fn func(render.Result)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	if r.finished {
		res := r.result
		r.mu.Unlock()
		fn(res)
		return
	}
	r.onFinished = append(r.onFinished, fn)
	r.mu.Unlock()
}

func (r *FakeRenderer) OnProgress(fn func(int)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.onProgress = append(r.onProgress, fn)
	r.mu.Unlock()
}

var (
	_ render.Renderer         = (*FakeRenderer)(nil)
	_ render.ProgressNotifier = (*FakeRenderer)(nil)
)
