// Package statusapi serves the worker's HTTP status endpoint.
//
// Routes:
//
//	GET /healthz     store connectivity
//	GET /status      worker snapshot plus job counts
//	GET /jobs/{id}   a single job, merged with its live progress mirror when one is configured
//
// Responses use a {"data": ...} envelope, errors {"error": {"code", "message"}}.
package statusapi
