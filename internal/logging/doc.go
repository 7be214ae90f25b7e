// Package logging assembles structured slog loggers and formatting helpers used
// across the exporter.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so render code can tag log lines with the
// export run ID, job sequence number, and track name. Every export run also
// gets its own JSON log file through NewRunLog, teed from the main logger.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// records with the same shape as the rest of the system.
package logging
