package history

import "time"

// RunStatus is the lifecycle of an export run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunAborted RunStatus = "aborted"
)

// JobStatus is the lifecycle of one track job.
type JobStatus string

const (
	JobRendering JobStatus = "rendering"
	JobExported  JobStatus = "exported"
	JobFailed    JobStatus = "failed"
	JobSkipped   JobStatus = "skipped"
	JobAborted   JobStatus = "aborted"
)

// Mode names how a run exported the project.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeStems  Mode = "stems"
)

// Run is one export invocation.
type Run struct {
	ID          string
	Project     string
	Mode        Mode
	Format      string
	Destination string
	Status      RunStatus
	Total       int
	Exported    int
	Failed      int
	Reason      string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// Duration reports how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Job is one track rendered within a run.
type Job struct {
	RunID        string
	Seq          int
	Track        string
	OutputPath   string
	Status       JobStatus
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}
