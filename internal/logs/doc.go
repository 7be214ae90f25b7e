// Package logs reads trackexport log files for the CLI.
//
// Tail prints the last lines of the main log or of one run's JSON log and can
// keep following the file while an export in another process appends to it.
// Memory use is bounded by the requested line count.
package logs
