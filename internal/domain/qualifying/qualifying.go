// Package qualifying turns qualifying session texts into durations, validity
// flags, a best time and a computed grid order.
package qualifying

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/pitwall/internal/domain/model"
)

const (
	// PenaltyMS stands in for an absent or unparsable session.
	PenaltyMS int64 = 300_000
	// FallbackGrid replaces a missing or zero grid slot.
	FallbackGrid = 20
)

// maxMinutes bounds the minutes field of a lap time.
const maxMinutes = 999

// ParseLapTime parses "M:SS.fff" into milliseconds. Minutes are unsigned
// decimal digits, seconds are two digits below 60 and the fraction has one to
// three digits. ok is false for absent or malformed text.
func ParseLapTime(s string) (ms int64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == `\N` {
		return 0, false
	}
	mins, rest, found := strings.Cut(s, ":")
	if !found {
		return 0, false
	}
	secs, frac, found := strings.Cut(rest, ".")
	if !found || len(secs) != 2 || len(frac) < 1 || len(frac) > 3 || len(mins) < 1 || len(mins) > 3 {
		return 0, false
	}
	m, ok := digits(mins)
	if !ok || m > maxMinutes {
		return 0, false
	}
	sec, ok := digits(secs)
	if !ok || sec >= 60 {
		return 0, false
	}
	f, ok := digits(frac)
	if !ok {
		return 0, false
	}
	for i := len(frac); i < 3; i++ {
		f *= 10
	}
	return m*60_000 + sec*1000 + f, true
}

// digits parses a non-empty run of ASCII digits.
func digits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

// FormatLapTime renders milliseconds as "M:SS.fff".
func FormatLapTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%d:%02d.%03d", ms/60_000, (ms%60_000)/1000, ms%1000)
}

// IsValid reports whether a session value is a real time rather than the penalty.
func IsValid(ms int64) bool { return ms != PenaltyMS }

// Times is the normalized qualifying result of one driver.
type Times struct {
	Q1   int64
	Q2   int64
	Q3   int64
	Best int64
}

// Normalize parses the three sessions, substitutes the penalty for each
// missing one and takes the minimum.
func Normalize(q model.QualifyingRecord) Times {
	t := Times{
		Q1: sessionOrPenalty(q.Q1),
		Q2: sessionOrPenalty(q.Q2),
		Q3: sessionOrPenalty(q.Q3),
	}
	t.Best = min(t.Q1, t.Q2, t.Q3)
	return t
}

// HasTime reports whether at least one session produced a real time.
func (t Times) HasTime() bool {
	return IsValid(t.Q1) || IsValid(t.Q2) || IsValid(t.Q3)
}

// Flags returns the 0/1 validity columns for Q1, Q2 and Q3.
func (t Times) Flags() (q1, q2, q3 int) {
	return flag(t.Q1), flag(t.Q2), flag(t.Q3)
}

func sessionOrPenalty(s string) int64 {
	if ms, ok := ParseLapTime(s); ok {
		return ms
	}
	return PenaltyMS
}

func flag(ms int64) int {
	if IsValid(ms) {
		return 1
	}
	return 0
}

// GridRanks ranks best times ascending with the "min" method: equal values
// share the smallest rank of their group, and the next group skips ahead.
func GridRanks(best []int64) []int {
	order := make([]int, len(best))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return best[order[a]] < best[order[b]] })

	ranks := make([]int, len(best))
	for pos, i := range order {
		if pos > 0 && best[order[pos-1]] == best[i] {
			ranks[i] = ranks[order[pos-1]]
			continue
		}
		ranks[i] = pos + 1
	}
	return ranks
}

// ResolveGrid picks the classified grid slot when present, otherwise the
// computed rank. Zero and missing values become FallbackGrid.
func ResolveGrid(classified *int, computed int) int {
	g := computed
	if classified != nil {
		g = *classified
	}
	if g <= 0 {
		return FallbackGrid
	}
	return g
}
