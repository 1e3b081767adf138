package correlate

import (
	"sort"
	"sync"

	"qris/internal/dfa"
	"qris/internal/qerr"
	"qris/internal/siteprofile"
	"qris/internal/stream"
)

// maxWorkers bounds the concurrency of StreamExtractor across a
// capture's streams (spec §5's permitted parallel point). Modeled on
// the teacher's fixed-size channel token bucket rather than an
// unbounded goroutine-per-stream fan-out.
const maxWorkers = 8

// Run correlates every stream in obs against profile and returns the
// ordered list of candidate traces (primary plus post-processing
// variants) ready for the ranker. chinese selects Pinyin handling;
// trident forces enc=false under Chinese (IE/Edge URL handling).
func Run(obs []Observation, profile *siteprofile.Profile, chinese, trident bool) ([]*stream.Trace, error) {
	zh, enc := resolveLanguage(profile, chinese, trident)

	groups := groupStreams(obs, profile.HTTPVersion)
	if len(groups) == 0 {
		return nil, qerr.ErrEmptyConversation
	}

	best := runGroupsConcurrently(groups, profile, zh, enc)
	if best == nil || best.Len() < 2 {
		return nil, qerr.ErrNoSubsequence
	}

	traces := []*stream.Trace{best}

	if profile.Cancel > 0 {
		for i := int32(0); i < profile.Cancel; i++ {
			traces = append(traces, prependHead(traces[i], profile))
		}
	}

	if chinese && traces[0].Len() > 2 {
		n := len(traces)
		for i := 0; i < n; i++ {
			traces = append(traces, discardTail(traces[i]))
		}
	}

	if !chinese && profile.TrimSpace {
		n := len(traces)
		for i := 0; i < n; i++ {
			if hasApostropheState(traces[i]) {
				rewritten := rewriteApoToSpace(traces[i])
				variants := discardDupSpace(rewritten)
				traces = append(traces, variants...)

				if profile.AddByte > 0 && sumAddedBytes(traces[i]) == 0 {
					traces = append(traces, discardDupSpaceWithAddByte(rewritten, profile)...)
				}
			}
		}
	}

	for _, t := range traces {
		delimitToken(t, profile, chinese)
		sizePattern(t, profile)
		timingInterval(t)
	}

	return traces, nil
}

// resolveLanguage mirrors correlate_state's zh/enc resolution,
// including the Yahoo Chinese override and the "trim-space English
// behaves like Chinese for DFA purposes" rule.
func resolveLanguage(profile *siteprofile.Profile, chinese, trident bool) (zh, enc bool) {
	zh = chinese
	if zh {
		enc = profile.EncodeApostrophe
		if trident {
			enc = false
		}
	} else {
		enc = profile.EncodeSpace
		if profile.TrimSpace {
			zh = true
		}
	}
	return zh, enc
}

func groupStreams(obs []Observation, version dfa.Version) map[streamKey][]Observation {
	groups := make(map[streamKey][]Observation)
	for _, o := range obs {
		var key streamKey
		if version == dfa.HTTP11 {
			key = streamKey{Src: o.Src, Dst: o.Dst}
		} else {
			key = streamKey{Src: o.Src, Dst: o.Dst, SPort: o.SPort}
		}
		groups[key] = append(groups[key], o)
	}
	return groups
}

// runGroupsConcurrently invokes checkStream for every group across a
// bounded worker pool, then reduces to the single globally longest
// trace in a fixed, deterministic group order — matching the
// original's plain "later groups only replace on strictly greater
// length" semantics regardless of goroutine completion order.
func runGroupsConcurrently(groups map[streamKey][]Observation, profile *siteprofile.Profile, zh, enc bool) *stream.Trace {
	keys := make([]streamKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Src != keys[j].Src {
			return keys[i].Src < keys[j].Src
		}
		if keys[i].Dst != keys[j].Dst {
			return keys[i].Dst < keys[j].Dst
		}
		return keys[i].SPort < keys[j].SPort
	})

	results := make([]*stream.Trace, len(keys))
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, k := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, obsList []Observation) {
			defer wg.Done()
			defer func() { <-sem }()
			sizes, times := toSizeTime(obsList)
			results[i] = checkStream(sizes, times, profile, zh, enc)
		}(i, groups[k])
	}
	wg.Wait()

	var best *stream.Trace
	for _, r := range results {
		if r == nil {
			continue
		}
		if best == nil || r.Len() > best.Len() {
			best = r
		}
	}
	return best
}

func toSizeTime(obs []Observation) ([]int32, []int64) {
	sizes := make([]int32, len(obs))
	times := make([]int64, len(obs))
	for i, o := range obs {
		sizes[i] = o.SizeBytes
		times[i] = o.TimeMS
	}
	return sizes, times
}

// checkStream runs StreamExtractor over one stream, applying the
// threshold zeroing, Baidu double run, stretch-size search and
// unindexed-header prepend from spec §4.3/§4.4.
func checkStream(sizes []int32, times []int64, profile *siteprofile.Profile, zh, enc bool) *stream.Trace {
	sizes = applyThreshold(sizes, profile)

	var best *stream.Trace
	if profile.BDSvrTM {
		d1 := stream.Extract(sizes, times, profile, zh, enc, true)
		d2 := stream.Extract(sizes, times, profile, zh, enc, false)
		best = pickLongerFewerDelim(d1, d2)
	} else {
		best = stream.Extract(sizes, times, profile, zh, enc, false)
	}

	if len(profile.Stretch) > 0 {
		longest := best.Len()
		delimMin := countDelims(best)
		for _, s := range profile.Stretch {
			stretch := s
			if containsInt32(sizes, stretch) {
				continue
			}
			adjusted := stretchAdjust(sizes, stretch)
			cand := stream.Extract(adjusted, times, profile, zh, enc, false)
			cand.StretchSize = &stretch
			if cand.Len() > longest {
				longest, delimMin, best = cand.Len(), countDelims(cand), cand
			} else if cand.Len() == longest {
				if d := countDelims(cand); d <= delimMin {
					delimMin, best = d, cand
				}
			}
		}
	}

	if indexHeader, _ := profile.Effective(zh); indexHeader {
		best = prependUnindexedHeader(best, sizes, times)
	}

	return best
}

func applyThreshold(sizes []int32, profile *siteprofile.Profile) []int32 {
	if profile.Threshold == nil {
		return sizes
	}
	out := make([]int32, len(sizes))
	for i, s := range sizes {
		if s < *profile.Threshold {
			out[i] = 0
		} else {
			out[i] = s
		}
	}
	return out
}

func stretchAdjust(sizes []int32, stretch int32) []int32 {
	out := make([]int32, len(sizes))
	for i, s := range sizes {
		if s > stretch {
			out[i] = s - 1
		} else {
			out[i] = s
		}
	}
	return out
}

func containsInt32(haystack []int32, v int32) bool {
	for _, s := range haystack {
		if s == v {
			return true
		}
	}
	return false
}

func countDelims(t *stream.Trace) int {
	n := 0
	for _, s := range t.States {
		if siteprofile.IsDelimState(s) {
			n++
		}
	}
	return n
}

func pickLongerFewerDelim(a, b *stream.Trace) *stream.Trace {
	switch {
	case a.Len() > b.Len():
		return a
	case b.Len() > a.Len():
		return b
	}
	if countDelims(a) <= countDelims(b) {
		return a
	}
	return b
}

// prependUnindexedHeader looks one valid step before the trace head
// for a larger packet and, if found, assumes it was the (unindexed,
// hence not headed by a counter) first keystroke.
func prependUnindexedHeader(best *stream.Trace, sizes []int32, times []int64) *stream.Trace {
	if best.Len() == 0 {
		return best
	}
	headIdx := best.Indices[0]
	for i := headIdx - 1; i >= 0; i-- {
		dt := times[headIdx] - times[i]
		if dt >= 1000 {
			break
		}
		if dt <= 20 {
			continue
		}
		if sizes[i] > sizes[headIdx] {
			return prependStep(best, times[i], sizes[i], i)
		}
	}
	return best
}

func prependStep(t *stream.Trace, time int64, size int32, idx int) *stream.Trace {
	c := t.Clone()
	c.Times = append([]int64{time}, c.Times...)
	c.Sizes = append([]int32{size}, c.Sizes...)
	c.Indices = append([]int{idx}, c.Indices...)
	c.States = append([]dfa.State{dfa.Ltr}, c.States...)
	if c.Counters != nil {
		c.Counters = append([]int32{c.Counters[0] - 1}, c.Counters...)
	}
	if c.AddedBytes != nil {
		c.AddedBytes = append([]int{0}, c.AddedBytes...)
	}
	if c.GSMSS != nil {
		c.GSMSS = append([]int32{0}, c.GSMSS...)
	}
	if c.CookieChange != nil {
		c.CookieChange = append([]int32{0}, c.CookieChange...)
	}
	return c
}
