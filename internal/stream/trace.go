// Package stream implements StreamExtractor: the O(n^2) Longest
// Accepted Subsequence search that turns one packet stream into the
// best keystroke trace a SiteProfile's adjusters and DFA will accept.
package stream

import "qris/internal/dfa"

// Trace is a keystroke trace stored struct-of-arrays, one slice per
// column. Optional columns (GSMSS, CookieChange) are nil when the
// site profile does not declare that feature — callers must check
// for nil before indexing them.
type Trace struct {
	Times        []int64
	Sizes        []int32
	Indices      []int
	States       []dfa.State
	Counters     []int32
	AddedBytes   []int
	GSMSS        []int32
	CookieChange []int32

	// Delimiter, Pattern and Interval are filled in by the correlator's
	// post-processing; StreamExtractor itself only produces the columns
	// above.
	Delimiter []int
	Pattern   []int32
	Interval  []int64

	// StretchSize records the stretch-size threshold that won this
	// trace's candidate search, if any (spec §4.3). Needed later by
	// size-pattern column population, which must re-flag the index
	// where the extra length byte appears.
	StretchSize *int32
}

// Len reports the number of accepted keystroke positions.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Indices)
}

// Clone returns a deep copy, since candidate traces are mutated
// independently by the correlator's post-processing variants.
func (t *Trace) Clone() *Trace {
	c := &Trace{
		Times:      append([]int64(nil), t.Times...),
		Sizes:      append([]int32(nil), t.Sizes...),
		Indices:    append([]int(nil), t.Indices...),
		States:     append([]dfa.State(nil), t.States...),
		Counters:   append([]int32(nil), t.Counters...),
		AddedBytes: append([]int(nil), t.AddedBytes...),
	}
	if t.GSMSS != nil {
		c.GSMSS = append([]int32(nil), t.GSMSS...)
	}
	if t.CookieChange != nil {
		c.CookieChange = append([]int32(nil), t.CookieChange...)
	}
	if t.Delimiter != nil {
		c.Delimiter = append([]int(nil), t.Delimiter...)
	}
	if t.Pattern != nil {
		c.Pattern = append([]int32(nil), t.Pattern...)
	}
	if t.Interval != nil {
		c.Interval = append([]int64(nil), t.Interval...)
	}
	if t.StretchSize != nil {
		v := *t.StretchSize
		c.StretchSize = &v
	}
	return c
}
