package service

import "errors"

var (
	// ErrNoRaces is returned when a training or weather run selects no race.
	ErrNoRaces = errors.New("no races selected")
	// ErrTargetRace is returned when the prediction target is not indexed.
	ErrTargetRace = errors.New("target race not indexed")
)
