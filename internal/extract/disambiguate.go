package extract

import "math"

// target describes the field being resolved and the range of the field competing with it.
type target struct {
	field Field
	hint  UnitHint
	rng   Range
	other Range
}

// rule inspects the pool and either picks a candidate (by index) or defers.
// A rule may also settle the field as unresolvable by returning done with idx -1.
type rule func(pool []Candidate, t target) (idx int, done bool)

// cascade is evaluated in order; the first rule that is done wins.
var cascade = []rule{
	singleHinted,
	bestHinted,
	disjointUnknown,
}

// singleHinted picks the one in-range candidate carrying the field's unit.
func singleHinted(pool []Candidate, t target) (int, bool) {
	found := -1
	for i, c := range pool {
		if c.Hint != t.hint {
			continue
		}
		if found >= 0 {
			return -1, false
		}
		found = i
	}
	return found, found >= 0
}

// bestHinted breaks a tie between several hinted candidates: highest confidence,
// then closest to the range midpoint, then earliest in scan order.
func bestHinted(pool []Candidate, t target) (int, bool) {
	best := -1
	for i, c := range pool {
		if c.Hint != t.hint {
			continue
		}
		if best < 0 || better(c, pool[best], t.rng.Mid()) {
			best = i
		}
	}
	return best, best >= 0
}

func better(a, b Candidate, mid float64) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	da, db := math.Abs(a.Value-mid), math.Abs(b.Value-mid)
	if da != db {
		return da < db
	}
	return a.order < b.order
}

// disjointUnknown falls back to unlabelled numbers that only fit this field's range.
// More than one eligible value is ambiguous and leaves the field unset.
func disjointUnknown(pool []Candidate, t target) (int, bool) {
	found := -1
	for i, c := range pool {
		if c.Hint != HintUnknown || !t.rng.Contains(c.Value) || t.other.Contains(c.Value) {
			continue
		}
		if found >= 0 {
			return -1, true
		}
		found = i
	}
	return found, true
}

// resolve selects at most one candidate for t and returns it with the pool that remains.
// Hinted candidates outside the field's range are discarded before the cascade runs.
func resolve(pool []Candidate, t target, notes *[]Note) (*Candidate, []Candidate) {
	kept := make([]Candidate, 0, len(pool))
	var discarded []float64
	for _, c := range pool {
		if c.Hint == t.hint && !t.rng.Contains(c.Value) {
			discarded = append(discarded, c.Value)
			continue
		}
		kept = append(kept, c)
	}
	if len(discarded) > 0 {
		*notes = append(*notes, Note{Field: t.field, Kind: NoteOutOfRange, Values: discarded})
	}

	for _, r := range cascade {
		idx, done := r(kept, t)
		if !done {
			continue
		}
		if idx < 0 {
			if amb := ambiguousValues(kept, t); len(amb) > 0 {
				*notes = append(*notes, Note{Field: t.field, Kind: NoteAmbiguous, Values: amb})
			}
			return nil, kept
		}
		chosen := kept[idx]
		rest := make([]Candidate, 0, len(kept)-1)
		rest = append(rest, kept[:idx]...)
		rest = append(rest, kept[idx+1:]...)
		return &chosen, rest
	}
	return nil, kept
}

// ambiguousValues lists the unlabelled values that could have been this field.
func ambiguousValues(pool []Candidate, t target) []float64 {
	var out []float64
	for _, c := range pool {
		if c.Hint == HintUnknown && t.rng.Contains(c.Value) {
			out = append(out, c.Value)
		}
	}
	return out
}
