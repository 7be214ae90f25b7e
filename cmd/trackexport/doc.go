// Package main hosts the trackexport CLI entrypoint and command graph.
//
// The Cobra command tree loads a project document, resolves export settings
// from flags and the configuration file, and hands the run to the export
// coordinator. Whole-project mixdowns and per-track stem exports share the
// same flags; history, format listing, preflight checks and configuration
// scaffolding live beside them.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through commands or flags.
package main
