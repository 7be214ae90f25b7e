// Package multirender exports every audible track of a project to its own
// file, one render at a time.
//
// An Orchestrator selects the eligible tracks (unmuted instrument and sample
// tracks of the main list, then every unmuted pattern track), mutes them all,
// and walks the resulting jobs in discovery order. For each job it unmutes
// the job's track, builds a renderer for the derived output path, and waits
// for that renderer's completion notification before remuting the track and
// moving on. Exactly one renderer is in flight at any time.
//
// Per-job failures are recorded in the run Summary and never stop the run.
// Abort and Close stop the run cooperatively and always leave the active
// track muted again.
package multirender
