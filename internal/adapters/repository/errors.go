package repository

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrOpen    = errors.New("open weather cache")
	ErrCorrupt = errors.New("corrupt weather cache entry")
)
