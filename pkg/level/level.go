// Package level defines the level request records exchanged with the
// submission site and kept in the local queue and history.
package level

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Difficulty is the in-game difficulty rating of a level.
type Difficulty string

const (
	NA           Difficulty = "NA"
	Easy         Difficulty = "Easy"
	Normal       Difficulty = "Normal"
	Hard         Difficulty = "Hard"
	Harder       Difficulty = "Harder"
	Insane       Difficulty = "Insane"
	EasyDemon    Difficulty = "Easy Demon"
	MediumDemon  Difficulty = "Medium Demon"
	HardDemon    Difficulty = "Hard Demon"
	InsaneDemon  Difficulty = "Insane Demon"
	ExtremeDemon Difficulty = "Extreme Demon"
)

// AllDifficulties returns every difficulty in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{
		NA,
		Easy,
		Normal,
		Hard,
		Harder,
		Insane,
		EasyDemon,
		MediumDemon,
		HardDemon,
		InsaneDemon,
		ExtremeDemon,
	}
}

// ParseDifficulty converts user or server input into a Difficulty. Matching
// ignores case, spaces, dashes and underscores, so "easy-demon" and
// "EasyDemon" both resolve to EasyDemon.
func ParseDifficulty(raw string) (Difficulty, error) {
	key := compact(raw)
	for _, d := range AllDifficulties() {
		if compact(string(d)) == key {
			return d, nil
		}
	}
	return NA, fmt.Errorf("level: unknown difficulty %q", raw)
}

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	for _, candidate := range AllDifficulties() {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsDemon reports whether d is one of the demon tiers.
func (d Difficulty) IsDemon() bool {
	return strings.HasSuffix(string(d), "Demon")
}

func (d Difficulty) String() string {
	return string(d)
}

// Length is the in-game length bucket of a level.
type Length string

const (
	Tiny   Length = "Tiny"
	Short  Length = "Short"
	Medium Length = "Medium"
	Long   Length = "Long"
	XL     Length = "XL"
)

// AllLengths returns every length from shortest to longest.
func AllLengths() []Length {
	return []Length{Tiny, Short, Medium, Long, XL}
}

// ParseLength converts user or server input into a Length.
func ParseLength(raw string) (Length, error) {
	key := compact(raw)
	for _, l := range AllLengths() {
		if compact(string(l)) == key {
			return l, nil
		}
	}
	return Tiny, fmt.Errorf("level: unknown length %q", raw)
}

// Valid reports whether l is a known length.
func (l Length) Valid() bool {
	for _, candidate := range AllLengths() {
		if candidate == l {
			return true
		}
	}
	return false
}

func (l Length) String() string {
	return string(l)
}

func compact(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

// DefaultFlagReason is shown for flagged levels the server sent without a reason.
const DefaultFlagReason = "Flagged level"

// Record is one submitted level. Record only holds comparable fields so two
// queues can be compared element by element. Members the site sends that
// Record does not model are kept as canonical JSON and written back on
// encode.
type Record struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Author      string     `json:"author"`
	Difficulty  Difficulty `json:"difficulty"`
	Length      Length     `json:"length"`
	Rated       bool       `json:"rated"`
	Stars       int        `json:"stars"`
	Downloads   int        `json:"downloads"`
	Likes       int        `json:"likes"`
	Description string     `json:"description"`
	Flagged     bool       `json:"flagged"`
	Blacklisted bool       `json:"blacklisted"`
	FlagReason  string     `json:"flag_reason,omitempty"`

	extra string
}

// knownMembers are the wire keys decoded into Record fields. Matching
// ignores case, like encoding/json.
var knownMembers = map[string]bool{
	"id":          true,
	"name":        true,
	"author":      true,
	"difficulty":  true,
	"length":      true,
	"rated":       true,
	"stars":       true,
	"downloads":   true,
	"likes":       true,
	"description": true,
	"flagged":     true,
	"blacklisted": true,
	"flag_reason": true,
}

// wireRecord mirrors Record with lenient field types for decoding.
type wireRecord struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Author      string          `json:"author"`
	Difficulty  string          `json:"difficulty"`
	Length      string          `json:"length"`
	Rated       json.RawMessage `json:"rated"`
	Stars       json.Number     `json:"stars"`
	Downloads   json.Number     `json:"downloads"`
	Likes       json.Number     `json:"likes"`
	Description string          `json:"description"`
	Flagged     bool            `json:"flagged"`
	Blacklisted bool            `json:"blacklisted"`
	FlagReason  string          `json:"flag_reason"`
}

// UnmarshalJSON accepts the shapes the submission site produces: numeric or
// string ids, numeric or boolean rated markers, and free-form difficulty and
// length labels.
func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var w wireRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return err
	}

	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}

	out := Record{
		ID:          id,
		Name:        w.Name,
		Author:      w.Author,
		Difficulty:  Difficulty(strings.TrimSpace(w.Difficulty)),
		Length:      Length(strings.TrimSpace(w.Length)),
		Rated:       decodeBool(w.Rated),
		Stars:       decodeCount(w.Stars),
		Downloads:   decodeCount(w.Downloads),
		Likes:       decodeCount(w.Likes),
		Description: w.Description,
		Flagged:     w.Flagged,
		Blacklisted: w.Blacklisted,
		FlagReason:  w.FlagReason,
	}
	if out.extra, err = unknownMembers(data); err != nil {
		return err
	}
	if d, err := ParseDifficulty(w.Difficulty); err == nil {
		out.Difficulty = d
	}
	if l, err := ParseLength(w.Length); err == nil {
		out.Length = l
	}
	switch {
	case !out.Flagged:
		out.FlagReason = ""
	case strings.TrimSpace(out.FlagReason) == "":
		out.FlagReason = DefaultFlagReason
	}

	*r = out
	return nil
}

// MarshalJSON writes the modelled fields over any unknown members kept from
// decoding.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	known, err := json.Marshal(plain(r))
	if err != nil || r.extra == "" {
		return known, err
	}
	members := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(r.extra), &members); err != nil {
		return nil, fmt.Errorf("level: decode kept members: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		members[k] = v
	}
	return json.Marshal(members)
}

// unknownMembers returns the members of the object in data that Record does
// not model, encoded with sorted keys, or "" when there are none.
func unknownMembers(data []byte) (string, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return "", err
	}
	for k := range members {
		if knownMembers[strings.ToLower(k)] {
			delete(members, k)
		}
	}
	if len(members) == 0 {
		return "", nil
	}
	out, err := json.Marshal(members)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("level: decode id: %w", err)
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("level: decode id: %w", err)
	}
	return n.String(), nil
}

func decodeBool(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		parsed, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && parsed
	}
	return false
}

func decodeCount(n json.Number) int {
	if n == "" {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return 0
		}
		v = int64(f)
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

// Title renders the one-line label used in listings.
func (r Record) Title() string {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = "Unknown Level"
	}
	return fmt.Sprintf("%s (ID: %s)", name, r.ID)
}

// Index returns the position of the record with id in records, or -1.
func Index(records []Record, id string) int {
	id = strings.TrimSpace(id)
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy of records that never aliases the input. A nil input
// yields an empty, non-nil slice so encoded documents are always arrays.
func Clone(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// Equal reports whether two sequences hold the same records in the same order.
func Equal(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Dedupe drops records whose id already appeared earlier in records and
// reports how many were dropped. The first occurrence keeps its position.
func Dedupe(records []Record) ([]Record, int) {
	out := make([]Record, 0, len(records))
	seen := make(map[string]bool, len(records))
	dropped := 0
	for _, r := range records {
		if seen[r.ID] {
			dropped++
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out, dropped
}
