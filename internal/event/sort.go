package event

import "sort"

// SortStable orders events by (Timestamp, Seq) ascending, in place.
//
// The sort is stable, so events with identical (Timestamp, Seq) keep their
// relative order. Applying it repeatedly to an already sorted slice is a
// no-op, which lets replay sort defensively without risking reorders.
func SortStable(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].Seq < events[j].Seq
	})
}

// Sorted returns a sorted copy, leaving the input untouched. Replay uses this
// so stored history is never mutated.
func Sorted(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	SortStable(out)
	return out
}

// CenterLine returns the line an edit is attributed to for metrics purposes:
// the midpoint of the first change's range. Returns 0 for events without
// changes.
func (e Event) CenterLine() int {
	if len(e.Changes) == 0 {
		return 0
	}
	r := e.Changes[0].Range
	return (r.StartLine + r.EndLine) / 2
}

// InsertedChars sums the inserted character counts across all changes.
func (e Event) InsertedChars() int {
	n := 0
	for _, c := range e.Changes {
		n += len(c.InsertedText)
	}
	return n
}

// DeletedChars sums the replaced character counts across all changes.
func (e Event) DeletedChars() int {
	n := 0
	for _, c := range e.Changes {
		n += c.ReplacedLength
	}
	return n
}
