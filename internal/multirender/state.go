package multirender

// State is the orchestrator's position in the export sequence.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateRendering
	StateSettling
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateRunning:   "running",
	StateRendering: "rendering",
	StateSettling:  "settling",
	StateDone:      "done",
	StateAborted:   "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the run has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Active reports whether a run is in progress.
func (s State) Active() bool {
	return s == StateRunning || s == StateRendering || s == StateSettling
}
