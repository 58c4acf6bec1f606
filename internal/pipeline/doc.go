// Package pipeline runs media jobs through an ordered list of weighted
// stages.
//
// Every stage delegates its I/O to a function in Services, so the engine
// never talks to Telegram or a transcription backend directly. Progress is
// derived from cumulative stage weight and persisted through a
// progress.Notifier; cleanup runs exactly once per run regardless of which
// stage failed.
package pipeline
