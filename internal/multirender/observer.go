package multirender

import (
	"fmt"
	"strings"
)

// Failure records one job that did not produce its file.
type Failure struct {
	Seq   int
	Track string
	Path  string
	Err   error
}

func (f Failure) String() string {
	return fmt.Sprintf("#%d %s: %v", f.Seq, f.Track, f.Err)
}

// Summary is the outcome of a run.
//
// Completed counts every job that settled, successfully or not. Exported
// counts only the files actually written.
type Summary struct {
	State     State
	Total     int
	Completed int
	Exported  int
	Failures  []Failure
	Reason    string
}

// OK reports whether the run finished and every job produced its file.
func (s Summary) OK() bool {
	return s.State == StateDone && len(s.Failures) == 0
}

func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d tracks exported", s.Exported, s.Total)
	if s.State == StateAborted {
		b.WriteString(" (aborted)")
	}
	if n := len(s.Failures); n > 0 {
		fmt.Fprintf(&b, ", %d failed", n)
	}
	return b.String()
}

// Observer receives run events. Progress may be called from renderer
// goroutines; Finished and Aborted are called once, from the goroutine that
// drives the run. Implementations must be safe for concurrent use and must
// not call Abort or Close on the orchestrator from within a callback.
type Observer interface {
	Progress(Progress)
	Finished(Summary)
	Aborted(reason string, summary Summary)
}

// JobObserver is optionally implemented by observers that track each job.
type JobObserver interface {
	JobStarted(Job)
	JobFinished(Job, error)
}

type nopObserver struct{}

func (nopObserver) Progress(Progress) {}

func (nopObserver) Finished(Summary) {}

func (nopObserver) Aborted(string, Summary) {}
