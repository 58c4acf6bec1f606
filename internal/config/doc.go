// Package config loads, normalizes, and validates transkribator configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables the
// worker has always accepted (DATABASE_URL, JOB_WORKER_ID, JOB_TYPES and
// friends). Always obtain settings through this package so the worker and the
// operator commands see the same sanitized values.
package config
