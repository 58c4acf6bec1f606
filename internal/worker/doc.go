// Package worker drives the job acquisition loop.
//
// A Worker polls the queue store with exponential idle backoff, dispatches
// acquired jobs through the handler registry, and records the outcome as
// completed or failed. It runs an optional low-frequency side task on an
// independent timer, exposes a state snapshot for the status endpoint, and
// releases any job still held when the run context is cancelled.
//
// Handlers run under a context detached from the run context so an
// in-flight job is never aborted mid-stage; they observe shutdown through
// jobs.ShutdownRequested instead.
package worker
