// Package history keeps a SQLite ledger of export runs and their per-track
// jobs.
//
// Each run is keyed by the UUID the export coordinator assigns; jobs are keyed
// by (run, sequence number). The ledger backs the `history` command and lets
// operators see which stems of an earlier run failed without re-reading logs.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt a new schema.
package history
