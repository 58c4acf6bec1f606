// Package logging assembles structured slog loggers and formatting helpers used
// across the worker, the pipeline, and the operator commands.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline stages can tag log
// lines with job ids, job types, worker ids, and stage names without threading
// attributes by hand. A no-op logger is provided for tests and wiring code
// that cannot fail.
package logging
