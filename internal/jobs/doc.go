// Package jobs maps job types to handlers and carries the cooperative
// shutdown signal from the worker loop into running handlers.
package jobs
