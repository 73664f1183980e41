package features

import "errors"

var (
	// ErrUnknownRace is returned for a race outside the timeline index.
	ErrUnknownRace = errors.New("race not indexed")
	// ErrUnknownMode is returned for a mode other than training or prediction.
	ErrUnknownMode = errors.New("unknown mode")
)
