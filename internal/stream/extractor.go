package stream

import (
	"sort"

	"qris/internal/dfa"
	"qris/internal/siteprofile"
)

// ldl is the longest-accepted-prefix bookkeeping for one packet index
// i, built incrementally from every earlier packet j (LDL[i] in the
// original). It is intentionally a plain struct of parallel slices,
// not an interface, since every column is always present during the
// search — optional columns only appear on the finished Trace.
type ldl struct {
	times  []int64
	sizes  []int32
	idx    []int
	states []dfa.State
	ct     []int32
	ab     []int
	gsmss  []int32
	coochg []int32
}

func (d *ldl) last() (time int64, size int32, state dfa.State, ct int32, gsmss, coochg int32) {
	n := len(d.idx)
	return d.times[n-1], d.sizes[n-1], d.states[n-1], d.ct[n-1], d.gsmss[n-1], d.coochg[n-1]
}

func (d *ldl) copyFrom(src *ldl) {
	d.times = append(d.times[:0], src.times...)
	d.sizes = append(d.sizes[:0], src.sizes...)
	d.idx = append(d.idx[:0], src.idx...)
	d.states = append(d.states[:0], src.states...)
	d.ct = append(d.ct[:0], src.ct...)
	d.ab = append(d.ab[:0], src.ab...)
	d.gsmss = append(d.gsmss[:0], src.gsmss...)
	d.coochg = append(d.coochg[:0], src.coochg...)
}

func (d *ldl) appendStep(time int64, size int32, idx int, state dfa.State, ct int32, ab int, gsmss, coochg int32) {
	d.times = append(d.times, time)
	d.sizes = append(d.sizes, size)
	d.idx = append(d.idx, idx)
	d.states = append(d.states, state)
	d.ct = append(d.ct, ct)
	d.ab = append(d.ab, ab)
	d.gsmss = append(d.gsmss, gsmss)
	d.coochg = append(d.coochg, coochg)
}

func sumAB(ab []int) int {
	s := 0
	for _, v := range ab {
		s += v
	}
	return s
}

// Extract runs the Longest Accepted Subsequence search over one
// packet stream (parallel size/time slices) for the given profile.
// chinese selects the Pinyin automaton family and token semantics;
// enc selects whether apostrophe/space are percent-encoded for this
// request; char is Baidu-only: true normalizes the one-time cookie
// add to Ltr, false to a delimiter. Non-Baidu callers pass char=false.
//
// Only candidates passing the length (> 2), mean-interval (> 50 ms)
// and, for changing-byte sites, constant-size acceptance tests from
// spec §4.3 are eligible. When none passes, the returned Trace is the
// single-step record of the first packet (Len() <= 1), which callers
// (the correlate package) treat as no subsequence.
func Extract(sizes []int32, times []int64, profile *siteprofile.Profile, chinese, enc, char bool) *Trace {
	n := len(sizes)
	records := make([]*ldl, n)
	for i := range records {
		records[i] = &ldl{}
	}

	transfer := profile.TransferFor(chinese)
	indexHeader, counterStart := profile.Effective(chinese)

	for i := 0; i < n; i++ {
		state := dfa.Ltr
		ct := counterStart
		if indexHeader {
			ct++
		}
		ab := 0
		var gsmss, coochg int32
		var ctInc int32

		for j := i - 1; j >= 0; j-- {
			_, lastSize, _, _, _, _ := records[j].last()
			lastTime := records[j].times[len(records[j].times)-1]
			dtime := times[i] - lastTime
			dsize := sizes[i] - lastSize

			if dtime <= 20 {
				if profile.CounterMode == siteprofile.CounterFromN {
					ctInc = 1
				}
				continue
			}

			idx := len(records[j].idx)
			if indexHeader {
				idx++
			}
			prevState := records[j].states[len(records[j].states)-1]
			prevCT := records[j].ct[len(records[j].ct)-1] + ctInc
			prevAB := sumAB(records[j].ab)
			prevGSMSS := records[j].gsmss[len(records[j].gsmss)-1]
			prevCoochg := records[j].coochg[len(records[j].coochg)-1]

			if dtime >= 1000 {
				break
			}

			adjSize := profile.StripPwd(dsize, prevState, prevCT)
			adjSize, adjState, newAB := profile.StripAB(adjSize, prevState, idx, prevAB, chinese, enc)
			adjSize, adjState = profile.AdjustCT(adjSize, adjState, prevCT, chinese, enc)
			adjSize = profile.AdjustCB(adjSize, adjState, chinese)

			nextState := transfer(adjSize, adjState, enc)

			newGSMSS, newCoochg := prevGSMSS, prevCoochg
			if nextState == dfa.Nul {
				if profile.GSMSS {
					nextState, newGSMSS = profile.CheckGS(dsize, records[j].sizes, prevGSMSS)
				}
				if nextState == dfa.Nul && profile.BDSvrTM {
					nextState, newCoochg = profile.CheckBD(dsize, prevState, prevCT, prevCoochg, idx, char, chinese, enc, transfer)
				}
			}

			if nextState != dfa.Nul && len(records[j].idx) > len(records[i].idx) {
				state = nextState
				if siteprofile.IsDelimState(state) && profile.CounterMode == siteprofile.CounterCursor {
					ct = prevCT + 2
				} else {
					ct = prevCT + 1
				}
				ab = newAB
				gsmss = newGSMSS
				coochg = newCoochg
				records[i].copyFrom(records[j])
			}
		}

		records[i].appendStep(times[i], sizes[i], i, state, ct, ab, gsmss, coochg)
	}

	longest := 0
	for i := 0; i < n; i++ {
		rec := records[i]
		if len(rec.idx) <= 2 {
			continue
		}
		if meanInterval(rec.times) <= 50 {
			continue
		}
		if profile.ChangeByte > 0 && medianInt32(rec.sizes) == rec.sizes[len(rec.sizes)-1] {
			continue
		}
		if profile.GSMSS {
			trimFakeTrailingGSMSS(rec)
		}
		if len(rec.idx) > len(records[longest].idx) {
			longest = i
		}
	}

	t := toTrace(records[longest])
	if !profile.GSMSS {
		t.GSMSS = nil
	}
	if !profile.BDSvrTM {
		t.CookieChange = nil
	}
	return t
}

// trimFakeTrailingGSMSS drops a trailing gs_mss-adding step if it is
// more than twice any earlier intra-trace gap (spec §4.3's tail
// heuristic). Only idx/state are trimmed, matching the original's
// selective array mutation — the other columns keep their length and
// are simply ignored past the new idx/state length by toTrace.
func trimFakeTrailingGSMSS(rec *ldl) {
	n := len(rec.gsmss)
	if n < 2 || rec.gsmss[n-1] <= 0 || rec.gsmss[n-2] != 0 {
		return
	}
	gap := rec.idx[n-1] - rec.idx[n-2]
	for j := 0; j < n-2; j++ {
		if (rec.idx[j+1]-rec.idx[j])*2 >= gap {
			gap = 0
			break
		}
	}
	if gap != 0 {
		rec.idx = rec.idx[:n-1]
		rec.states = rec.states[:n-1]
	}
}

func toTrace(rec *ldl) *Trace {
	n := len(rec.idx)
	t := &Trace{
		Indices: append([]int(nil), rec.idx...),
		States:  append([]dfa.State(nil), rec.states[:n]...),
		Times:   make([]int64, n),
		Sizes:   make([]int32, n),
	}
	for i := 0; i < n; i++ {
		t.Times[i] = rec.times[i]
		t.Sizes[i] = rec.sizes[i]
	}
	if len(rec.ct) >= n {
		t.Counters = append([]int32(nil), rec.ct[:n]...)
	}
	if len(rec.ab) >= n {
		t.AddedBytes = append([]int(nil), rec.ab[:n]...)
	}
	if len(rec.gsmss) >= n {
		t.GSMSS = append([]int32(nil), rec.gsmss[:n]...)
	}
	if len(rec.coochg) >= n {
		t.CookieChange = append([]int32(nil), rec.coochg[:n]...)
	}
	return t
}

func meanInterval(times []int64) float64 {
	if len(times) < 2 {
		return 0
	}
	var sum int64
	for i := 1; i < len(times); i++ {
		sum += times[i] - times[i-1]
	}
	return float64(sum) / float64(len(times)-1)
}

func medianInt32(vals []int32) int32 {
	sorted := append([]int32(nil), vals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	// Even-length median averages as integer division, matching
	// numpy's float median truncated by the equality check it feeds.
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
