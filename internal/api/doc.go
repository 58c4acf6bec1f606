// Package api defines wire-format types and converters shared by the status
// HTTP endpoint and the operator CLI. It translates queue.Job records into
// transport-friendly DTOs so consumers can render jobs without depending on
// store internals.
//
// # Key Types
//
// JobItem: transport representation of a job with progress, lease, and
// failure details.
//
// JobService: read-only store access returning DTOs.
//
// # Design Notes
//
// DTOs use snake_case JSON tags to match the processing_jobs columns the bot
// layer already reads. Timestamps use RFC3339 with milliseconds. Payloads are
// passed through as json.RawMessage to avoid double-encoding.
package api
