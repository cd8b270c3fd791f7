package filter

import (
	"testing"

	"tableflip.dev/levelreq/pkg/level"
)

func tower() level.Record {
	return level.Record{ID: "A1", Name: "Tower", Difficulty: level.Hard, Length: level.Short}
}

func TestAdmitsScenario(t *testing.T) {
	f := Filters{
		Lengths:      []level.Length{level.Short},
		Difficulties: []level.Difficulty{level.Hard},
		Rated:        Both,
	}
	if !Admits(tower(), f) {
		t.Fatalf("expected Tower to be admitted")
	}

	f.Lengths = []level.Length{level.Long}
	if Admits(tower(), f) {
		t.Fatalf("expected Tower to be rejected with length restricted to Long")
	}
}

func TestAdmitsIsIntersection(t *testing.T) {
	r := tower()
	for _, lengthOK := range []bool{true, false} {
		for _, diffOK := range []bool{true, false} {
			for _, ratedOK := range []bool{true, false} {
				f := Filters{Rated: Both}
				if lengthOK {
					f.Lengths = []level.Length{level.Short}
				} else {
					f.Lengths = []level.Length{level.XL}
				}
				if diffOK {
					f.Difficulties = []level.Difficulty{level.Hard}
				} else {
					f.Difficulties = []level.Difficulty{level.Easy}
				}
				if !ratedOK {
					f.Rated = RatedOnly
				}
				want := lengthOK && diffOK && ratedOK
				if got := Admits(r, f); got != want {
					t.Fatalf("length=%v diff=%v rated=%v: got %v want %v", lengthOK, diffOK, ratedOK, got, want)
				}
			}
		}
	}
}

func TestAdmitsIsPure(t *testing.T) {
	f := Default()
	r := tower()
	first := Admits(r, f)
	for i := 0; i < 100; i++ {
		if Admits(r, f) != first {
			t.Fatalf("Admits changed its answer on call %d", i)
		}
	}
	if len(f.Lengths) != len(level.AllLengths()) {
		t.Fatalf("Admits must not modify filters")
	}
}

func TestRatedModes(t *testing.T) {
	rated := tower()
	rated.Rated = true
	unrated := tower()

	f := Default()
	f.Rated = RatedOnly
	if !Admits(rated, f) || Admits(unrated, f) {
		t.Fatalf("rated-only mismatch")
	}
	f.Rated = UnratedOnly
	if Admits(rated, f) || !Admits(unrated, f) {
		t.Fatalf("unrated-only mismatch")
	}
}

func TestFlaggedRecordsAreStillAdmitted(t *testing.T) {
	r := tower()
	r.Flagged = true
	r.FlagReason = "spam"
	r.Blacklisted = true
	if !Admits(r, Default()) {
		t.Fatalf("flag markers must not exclude records")
	}
}

func TestApplyKeepsOrder(t *testing.T) {
	records := []level.Record{
		{ID: "1", Length: level.Short, Difficulty: level.Easy},
		{ID: "2", Length: level.XL, Difficulty: level.Easy},
		{ID: "3", Length: level.Short, Difficulty: level.Insane},
	}
	f := Default()
	f.Lengths = []level.Length{level.Short}
	got := Apply(records, f)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("unexpected admitted set: %+v", got)
	}
}

func TestParseRatedMode(t *testing.T) {
	m, err := ParseRatedMode("Rated Only")
	if err != nil || m != RatedOnly {
		t.Fatalf("got %q %v", m, err)
	}
	if m, _ := ParseRatedMode(""); m != Both {
		t.Fatalf("empty should default to both")
	}
	if _, err := ParseRatedMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	f := Default()
	c := f.Clone()
	c.Lengths[0] = level.XL
	if f.Lengths[0] != level.Tiny {
		t.Fatalf("clone aliased lengths")
	}
}
