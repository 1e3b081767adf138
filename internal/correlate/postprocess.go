package correlate

import (
	"strings"

	"qris/internal/dfa"
	"qris/internal/siteprofile"
	"qris/internal/stream"
)

// prependHead synthesizes one extra keystroke ahead of target's first
// accepted step, for the "request was canceled and resent" variants
// (spec §4.4, profile.Cancel). The synthetic step copies the head's
// state and index but sets time/size/counter as if it preceded the
// head by exactly one retry interval.
func prependHead(target *stream.Trace, profile *siteprofile.Profile) *stream.Trace {
	c := target.Clone()
	if c.Len() == 0 {
		return c
	}
	c.Times = append([]int64{target.Times[0] - 1000}, c.Times...)
	c.Sizes = append([]int32{target.Sizes[0] - 1}, c.Sizes...)
	c.Indices = append([]int{target.Indices[0]}, c.Indices...)
	c.States = append([]dfa.State{target.States[0]}, c.States...)
	if c.Counters != nil {
		ct0 := target.Counters[0]
		if profile.CounterMode != siteprofile.CounterNone {
			ct0--
		}
		c.Counters = append([]int32{ct0}, c.Counters...)
	}
	if c.AddedBytes != nil {
		c.AddedBytes = append([]int{target.AddedBytes[0]}, c.AddedBytes...)
	}
	if c.GSMSS != nil {
		c.GSMSS = append([]int32{target.GSMSS[0]}, c.GSMSS...)
	}
	if c.CookieChange != nil {
		c.CookieChange = append([]int32{target.CookieChange[0]}, c.CookieChange...)
	}
	return c
}

// discardTail drops the last accepted step, for the Chinese
// last-keystroke-conflict variant (spec §4.4).
func discardTail(target *stream.Trace) *stream.Trace {
	n := target.Len()
	if n == 0 {
		return target.Clone()
	}
	return sliceTrace(target, 0, n-1)
}

func hasApostropheState(t *stream.Trace) bool {
	for _, s := range t.States {
		if strings.Contains(s.String(), "Apo") {
			return true
		}
	}
	return false
}

// rewriteApoToSpace rewrites every apostrophe-family state to the
// percent-encoded-space state, for the English trim-space variant
// (spec §4.4): a site that trims a trailing space is processed as
// Chinese internally, so its delimiter states come back as Apo* and
// must be relabeled before the English post-processing below runs.
func rewriteApoToSpace(t *stream.Trace) *stream.Trace {
	c := t.Clone()
	for i, s := range c.States {
		if strings.Contains(s.String(), "Apo") {
			c.States[i] = dfa.SpaPct
		}
	}
	return c
}

func isSpaState(s dfa.State) bool {
	return strings.Contains(s.String(), "Spa")
}

// discardDupSpace drops a duplicated percent-encoded-space keystroke:
// a step whose successor is also a space state is assumed to be the
// same space observed twice. The very first step is never dropped
// this way, matching the original's exclusion of index 0 from the
// drop set.
func discardDupSpace(t *stream.Trace) []*stream.Trace {
	n := t.Len()
	var dupSpaces []int
	for i := 0; i < n-1; i++ {
		if isSpaState(t.States[i+1]) {
			dupSpaces = append(dupSpaces, i)
		}
	}
	if len(dupSpaces) > 0 && dupSpaces[0] == 0 {
		if len(dupSpaces) == 1 {
			dupSpaces = nil
		} else {
			dupSpaces = dupSpaces[1:]
		}
	}
	if len(dupSpaces) == 0 {
		return []*stream.Trace{t.Clone()}
	}
	return []*stream.Trace{dropIndices(t, dupSpaces)}
}

// discardDupSpaceWithAddByte retries discardDupSpace once per
// add-byte-range position, temporarily relabeling that position as a
// plain letter (the added byte absorbed it) to see whether a
// different duplicate-space reading becomes available. t is mutated
// and restored in place between trials, matching the original's
// DataFrame.loc mutate/revert pattern.
func discardDupSpaceWithAddByte(t *stream.Trace, profile *siteprofile.Profile) []*stream.Trace {
	n := t.Len()
	dsize := computeDSize(t.Sizes)
	var out []*stream.Trace
	for idx := profile.AddByteRange.Lo; idx < profile.AddByteRange.Hi; idx++ {
		if n < 2 || idx > n-1 {
			break
		}
		if !profile.CheckAB(dsize[idx], t.States[idx]) {
			continue
		}
		origState := t.States[idx]
		origAB := 0
		if t.AddedBytes != nil {
			origAB = t.AddedBytes[idx]
		}
		t.States[idx] = dfa.Ltr
		if t.AddedBytes != nil {
			t.AddedBytes[idx] = 1
		}
		out = append(out, discardDupSpace(t)...)
		t.States[idx] = origState
		if t.AddedBytes != nil {
			t.AddedBytes[idx] = origAB
		}
	}
	return out
}

func sumAddedBytes(t *stream.Trace) int {
	s := 0
	for _, v := range t.AddedBytes {
		s += v
	}
	return s
}

func computeDSize(sizes []int32) []int32 {
	n := len(sizes)
	d := make([]int32, n)
	if n > 0 {
		d[0] = 1
	}
	for i := 1; i < n; i++ {
		d[i] = sizes[i] - sizes[i-1]
	}
	return d
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// sliceTrace returns a deep copy of t restricted to [lo,hi), keeping
// every column in lockstep.
func sliceTrace(t *stream.Trace, lo, hi int) *stream.Trace {
	c := &stream.Trace{
		Times:   append([]int64(nil), t.Times[lo:hi]...),
		Sizes:   append([]int32(nil), t.Sizes[lo:hi]...),
		Indices: append([]int(nil), t.Indices[lo:hi]...),
		States:  append([]dfa.State(nil), t.States[lo:hi]...),
	}
	if t.Counters != nil {
		c.Counters = append([]int32(nil), t.Counters[lo:hi]...)
	}
	if t.AddedBytes != nil {
		c.AddedBytes = append([]int(nil), t.AddedBytes[lo:hi]...)
	}
	if t.GSMSS != nil {
		c.GSMSS = append([]int32(nil), t.GSMSS[lo:hi]...)
	}
	if t.CookieChange != nil {
		c.CookieChange = append([]int32(nil), t.CookieChange[lo:hi]...)
	}
	if t.Delimiter != nil {
		c.Delimiter = append([]int(nil), t.Delimiter[lo:hi]...)
	}
	if t.Pattern != nil {
		c.Pattern = append([]int32(nil), t.Pattern[lo:hi]...)
	}
	if t.Interval != nil {
		c.Interval = append([]int64(nil), t.Interval[lo:hi]...)
	}
	if t.StretchSize != nil {
		v := *t.StretchSize
		c.StretchSize = &v
	}
	return c
}

// dropIndices returns a copy of t excluding the given positions,
// preserving the relative order of the rest.
func dropIndices(t *stream.Trace, drop []int) *stream.Trace {
	dropSet := make(map[int]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	c := &stream.Trace{}
	if t.StretchSize != nil {
		v := *t.StretchSize
		c.StretchSize = &v
	}
	for i := 0; i < t.Len(); i++ {
		if dropSet[i] {
			continue
		}
		c.Times = append(c.Times, t.Times[i])
		c.Sizes = append(c.Sizes, t.Sizes[i])
		c.Indices = append(c.Indices, t.Indices[i])
		c.States = append(c.States, t.States[i])
		if t.Counters != nil {
			c.Counters = append(c.Counters, t.Counters[i])
		}
		if t.AddedBytes != nil {
			c.AddedBytes = append(c.AddedBytes, t.AddedBytes[i])
		}
		if t.GSMSS != nil {
			c.GSMSS = append(c.GSMSS, t.GSMSS[i])
		}
		if t.CookieChange != nil {
			c.CookieChange = append(c.CookieChange, t.CookieChange[i])
		}
	}
	return c
}

// delimitToken fills in t.Delimiter: 1 marks a token boundary, -1
// marks a position whose classification is ambiguous and must be
// excluded from length/token/pattern filtering downstream (spec §4.4).
func delimitToken(t *stream.Trace, profile *siteprofile.Profile, chinese bool) {
	n := t.Len()
	if n == 0 {
		t.Delimiter = nil
		return
	}
	dsize := computeDSize(t.Sizes)
	delim := make([]int, n)
	for i, s := range t.States {
		name := s.String()
		if chinese {
			if strings.Contains(name, "Apo") {
				delim[i] = 1
			}
		} else if strings.Contains(name, "Spa") {
			delim[i] = 1
		}
	}

	if !chinese && !profile.EncodeSpace {
		for i := range delim {
			delim[i] = -1
		}
	}

	if indexHeader, _ := profile.Effective(chinese); indexHeader && n > 1 && dsize[1] < 0 {
		delim[1] = -1
	}

	if profile.Cancel > 0 {
		for i := 1; i < n; i++ {
			if t.Times[i]-t.Times[i-1] == 1000 {
				delim[i] = -1
			}
		}
	}

	if profile.CounterMode != siteprofile.CounterNone && t.Counters != nil {
		for _, conflict := range siteprofile.ConflictCounters {
			idx := -1
			for i, ct := range t.Counters {
				if ct >= conflict {
					idx = i
					break
				}
			}
			if idx == -1 {
				continue
			}
			if profile.CheckCT(dsize[idx], t.States[idx], t.Counters[idx]) {
				delim[idx] = -1
			}
		}
	}

	if profile.AddByte > 0 && sumAddedBytes(t) == 0 {
		for idx := profile.AddByteRange.Lo; idx < profile.AddByteRange.Hi; idx++ {
			if n < 2 || idx > n-1 {
				break
			}
			if profile.CheckAB(dsize[idx], t.States[idx]) {
				delim[idx] = -1
				if t.AddedBytes != nil {
					t.AddedBytes[idx] = 1
				}
			}
		}
	}

	for i, d := range dsize {
		if profile.CheckCB(d) {
			delim[i] = -1
		}
	}

	if profile.GSMSS {
		for i, d := range dsize {
			if abs32(d) > 4 {
				delim[i] = -1
			}
		}
	}

	if profile.FakeSpace && n > 1 && delim[1] == 1 {
		delim[1] = -1
	}

	t.Delimiter = delim
}

// sizePattern fills in t.Pattern, the HPACK-compressed size-increase
// pattern the ranker matches against QueryIndex rows. HTTP/1.1 traces
// have no Huffman compression to pattern-match, and QueryIndex builds
// no patterns for changing-byte sites, so this column is only filled
// for HTTP/2 sites with ChangeByte == 0 (spec §4.5/§4.6).
func sizePattern(t *stream.Trace, profile *siteprofile.Profile) {
	if profile.HTTPVersion != dfa.HTTP2 || profile.ChangeByte != 0 {
		return
	}
	n := t.Len()
	if n == 0 {
		return
	}
	pattern := computeDSize(t.Sizes)

	for i, d := range t.Delimiter {
		if d == -1 {
			pattern[i] = -1
		}
	}

	if profile.AddByte > 0 {
		for idx := profile.AddByteRange.Lo; idx < profile.AddByteRange.Hi; idx++ {
			if idx < n {
				pattern[idx] = -1
			}
		}
	}

	if t.StretchSize != nil {
		stretch := *t.StretchSize
		for i := 1; i < n; i++ {
			if t.Sizes[i-1] < stretch && t.Sizes[i] >= stretch {
				pattern[i] = -1
			}
		}
	}

	t.Pattern = pattern
}

// timingInterval fills in t.Interval, the intra-token keystroke gap
// used by rhythm scoring (spec §4.6); inter-token gaps (crossing a
// delimiter) are not timing signal and are zeroed.
func timingInterval(t *stream.Trace) {
	n := t.Len()
	if n == 0 {
		return
	}
	interval := make([]int64, n)
	for i := 1; i < n; i++ {
		interval[i] = t.Times[i] - t.Times[i-1]
	}
	for i, d := range t.Delimiter {
		if d == 1 {
			interval[i] = 0
		}
	}
	t.Interval = interval
}
