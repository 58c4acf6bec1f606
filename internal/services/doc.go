// Package services builds the pipeline service set for the media handler.
//
// A Catalog holds named providers (each supplying some of the six pipeline
// services) and named whole sets. Build parses the single override string
// operators pass through --service-overrides or MEDIA_SERVICE_OVERRIDES:
//
//	""                                   defaults
//	"set:production"                     the named set
//	"download=telegram,transcribe=whisper"  per-service overrides on defaults
//	"set:stub,deliver=telegram"          per-service overrides on a set
//
// Unknown names are errors that list what is available.
package services
