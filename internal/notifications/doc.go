// Package notifications sends operator alerts to ntfy.
//
// Alerts cover failed jobs and worker shutdown summaries. When no topic is
// configured NewService returns a no-op, so callers never need to check.
package notifications
