package multirender

// Progress is a point-in-time view of a run.
//
// Percent is the active renderer's own progress and is only meaningful while
// the state is StateRendering. Current names the track being rendered.
type Progress struct {
	State     State
	Percent   int
	Completed int
	Total     int
	Current   string
	Seq       int
}

// Overall folds per-job progress into a batch percentage.
func (p Progress) Overall() int {
	if p.State == StateDone {
		return 100
	}
	if p.Total <= 0 {
		return 0
	}
	percent := max(0, min(100, p.Percent))
	return min(100, (p.Completed*100+percent)/p.Total)
}
