// Package export coordinates one export run end to end.
//
// The Coordinator resolves the export format, checks and locks the
// destination, assigns a run ID, and then drives either a single renderer
// (whole-project mixdown) or a multirender.Orchestrator (one file per track).
// Run events fan out to the caller's presenter, the history ledger and the
// metrics recorder.
package export
