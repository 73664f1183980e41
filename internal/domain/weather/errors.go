package weather

import "errors"

var (
	// ErrBudgetExhausted is returned once the per-run upstream call budget is spent.
	ErrBudgetExhausted = errors.New("weather call budget exhausted")
	// ErrNoData is returned when the upstream answered with empty series.
	ErrNoData = errors.New("weather data empty")
)
