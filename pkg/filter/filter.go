// Package filter decides which level requests match the streamer's admission
// rules. Everything here is pure: no I/O and no shared state.
package filter

import (
	"fmt"
	"strings"

	"tableflip.dev/levelreq/pkg/level"
)

// RatedMode restricts records by their rated status.
type RatedMode string

const (
	// Both admits rated and unrated levels.
	Both RatedMode = "both"
	// RatedOnly admits only rated levels.
	RatedOnly RatedMode = "rated"
	// UnratedOnly admits only unrated levels.
	UnratedOnly RatedMode = "unrated"
)

// AllRatedModes returns the supported modes.
func AllRatedModes() []RatedMode {
	return []RatedMode{Both, RatedOnly, UnratedOnly}
}

// ParseRatedMode converts a flag or settings value to a RatedMode.
func ParseRatedMode(raw string) (RatedMode, error) {
	m := RatedMode(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case "":
		return Both, nil
	case Both, RatedOnly, UnratedOnly:
		return m, nil
	case "rated only", "rated-only":
		return RatedOnly, nil
	case "unrated only", "unrated-only":
		return UnratedOnly, nil
	}
	return Both, fmt.Errorf("filter: unknown rated mode %q", raw)
}

// Valid reports whether m is a known mode.
func (m RatedMode) Valid() bool {
	switch m {
	case Both, RatedOnly, UnratedOnly:
		return true
	}
	return false
}

// Filters are the streamer-configured admission rules.
type Filters struct {
	Lengths      []level.Length     `json:"length" validate:"dive,level_length"`
	Difficulties []level.Difficulty `json:"difficulty" validate:"dive,level_difficulty"`
	Rated        RatedMode          `json:"rated" validate:"oneof=both rated unrated"`
}

// Default admits every length, every difficulty, rated or not.
func Default() Filters {
	return Filters{
		Lengths:      level.AllLengths(),
		Difficulties: level.AllDifficulties(),
		Rated:        Both,
	}
}

// Clone returns a copy of f that shares no slices with it.
func (f Filters) Clone() Filters {
	out := Filters{Rated: f.Rated}
	if f.Lengths != nil {
		out.Lengths = append([]level.Length{}, f.Lengths...)
	}
	if f.Difficulties != nil {
		out.Difficulties = append([]level.Difficulty{}, f.Difficulties...)
	}
	return out
}

// Admits reports whether r passes f. The admitted set is the intersection of
// the length, difficulty and rated matches. Flagged and blacklisted records
// are judged like any other; those markers only change presentation.
func Admits(r level.Record, f Filters) bool {
	return hasLength(f.Lengths, r.Length) &&
		hasDifficulty(f.Difficulties, r.Difficulty) &&
		matchesRated(f.Rated, r.Rated)
}

// Apply returns the admitted records of records, in order, in a new slice.
func Apply(records []level.Record, f Filters) []level.Record {
	out := make([]level.Record, 0, len(records))
	for _, r := range records {
		if Admits(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func hasLength(set []level.Length, l level.Length) bool {
	for _, candidate := range set {
		if candidate == l {
			return true
		}
	}
	return false
}

func hasDifficulty(set []level.Difficulty, d level.Difficulty) bool {
	for _, candidate := range set {
		if candidate == d {
			return true
		}
	}
	return false
}

func matchesRated(mode RatedMode, rated bool) bool {
	switch mode {
	case RatedOnly:
		return rated
	case UnratedOnly:
		return !rated
	default:
		return true
	}
}
