package services

import "errors"

var (
	// ErrUnknownService marks an override naming a provider, set or service
	// kind the catalog does not know.
	ErrUnknownService = errors.New("unknown service")
	// ErrInvalidOverride marks a malformed override string.
	ErrInvalidOverride = errors.New("invalid service override")
)
