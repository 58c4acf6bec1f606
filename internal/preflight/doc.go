// Package preflight provides readiness checks for the store, external
// services and filesystem paths the worker depends on.
//
// The worker command runs RunAll at startup and logs failures without
// refusing to start; the CLI "transkribator preflight" command prints the
// same results for operators. Each check is gated by its config: services
// without credentials are skipped.
package preflight
