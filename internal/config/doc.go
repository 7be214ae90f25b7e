// Package config loads, normalizes, and validates exporter configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRACKEXPORT_ENGINE. Render defaults are kept as plain strings and numbers
// here; the export layer turns them into typed render settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
