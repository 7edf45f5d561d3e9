package sequence

import (
	"cmp"
	"slices"
)

// compareBeat orders by beat, then note-offs before note-ons.
// Everything else compares equal so the stable sort keeps insertion order.
func compareBeat(a, b Event) int {
	if c := cmp.Compare(a.Beat, b.Beat); c != 0 {
		return c
	}
	switch {
	case a.IsNoteOff() && !b.IsNoteOff():
		return -1
	case b.IsNoteOff() && !a.IsNoteOff():
		return 1
	}
	return 0
}

// Order returns a beat-ordered copy of events. At equal beats any note-off
// comes before any note-on; events of the same class keep their relative
// order. The input slice is left untouched.
func Order(events []Event) []Event {
	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, compareBeat)
	return ordered
}

// ByBeat flattens a beat -> events mapping into one ordered slice.
func ByBeat(buckets map[float64][]Event) []Event {
	beats := make([]float64, 0, len(buckets))
	n := 0
	for beat, evs := range buckets {
		beats = append(beats, beat)
		n += len(evs)
	}
	slices.Sort(beats)

	ordered := make([]Event, 0, n)
	for _, beat := range beats {
		for _, ev := range buckets[beat] {
			ordered = append(ordered, ev.At(beat))
		}
	}
	// buckets are already grouped by beat, this only applies the off/on rule
	slices.SortStableFunc(ordered, compareBeat)
	return ordered
}
