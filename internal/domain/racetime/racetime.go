// Package racetime resolves the race completion time of each starter,
// back-filling lapped finishers from the winner's time and qualifying pace.
package racetime

import (
	"fmt"
)

const (
	// LapPaceAllowanceMS is added to the best qualifying lap to estimate a race lap.
	LapPaceAllowanceMS int64 = 7000
	// UnusableMS marks a starter that did not produce a usable time.
	UnusableMS int64 = 10_000_000
	// MaxLapsBehind is the largest deficit that is imputed.
	MaxLapsBehind = 4
)

var lappedStatus = func() map[string]int {
	m := make(map[string]int, MaxLapsBehind)
	m["+1 Lap"] = 1
	for n := 2; n <= MaxLapsBehind; n++ {
		m[fmt.Sprintf("+%d Laps", n)] = n
	}
	return m
}()

// LapsBehind parses the status text of a lapped finisher. Only the exact
// texts "+1 Lap" through "+4 Laps" are accepted.
func LapsBehind(status string) (int, bool) {
	n, ok := lappedStatus[status]
	return n, ok
}

// Input is what the imputer needs about one starter.
type Input struct {
	Recorded *int64 // the archive's completion time
	Status   string // status text of the result
	WinnerMS *int64 // the winner's completion time
	BestQ    int64  // best qualifying lap after penalty substitution
	HasQPace bool   // false when every session is the penalty
}

// Outcome reports how the time was obtained.
type Outcome int

const (
	Recorded Outcome = iota
	Imputed
	Unusable
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case Imputed:
		return "imputed"
	default:
		return "unusable"
	}
}

// Resolve returns the completion time in milliseconds.
func Resolve(in Input) (int64, Outcome) {
	if in.Recorded != nil {
		return *in.Recorded, Recorded
	}
	laps, ok := LapsBehind(in.Status)
	if !ok || in.WinnerMS == nil || !in.HasQPace {
		return UnusableMS, Unusable
	}
	return *in.WinnerMS + (in.BestQ+LapPaceAllowanceMS)*int64(laps), Imputed
}

// Valid reports whether ms is a usable race time.
func Valid(ms int64) bool { return ms != UnusableMS }
