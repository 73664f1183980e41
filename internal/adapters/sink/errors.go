package sink

import "errors"

var (
	// ErrDestination is returned for an unusable output destination.
	ErrDestination = errors.New("invalid destination")
	// ErrWrite is returned when the output could not be stored.
	ErrWrite = errors.New("write output")
)
