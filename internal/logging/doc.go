// Package logging builds slog loggers for alogger and provides the attr
// helpers and field-name constants used across the ingest pipeline.
//
// Two output formats are supported: a compact console format for
// interactive use and line-delimited JSON for log shipping. Workers and
// stages attach component, worker, job, and stage attributes so one run's
// records can be correlated after the fact.
package logging
