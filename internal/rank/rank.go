// Package rank narrows a QueryIndex down to the queries consistent
// with one candidate keystroke trace, then scores the survivors by
// typing rhythm. Grounded on original_source/qris/queries.py's
// filter_by_length/filter_by_token/filter_by_pattern/rank_by_rhythm.
package rank

import (
	"math"
	"sort"

	"qris/internal/queryindex"
	"qris/internal/stream"
)

// Candidate is one surviving query with its final rhythm score. Lower
// Score is a better match (it is -log10 of a probability density, so
// smaller means "more likely"), matching the original's ranking.
type Candidate struct {
	Row   queryindex.Row
	Score float64
	Rank  int
}

// FilterByLength keeps only rows whose Length equals the trace's
// keystroke count.
func FilterByLength(idx *queryindex.Index, trace *stream.Trace) []queryindex.Row {
	n := trace.Len()
	out := make([]queryindex.Row, 0)
	for _, row := range idx.Rows {
		if row.Length == n {
			out = append(out, row)
		}
	}
	return out
}

// FilterByToken narrows candidates to those whose delimiter sequence
// matches the trace's Delimiter column, treating -1 positions (the
// ambiguous positions delimitToken tags in the trace) as wildcards.
func FilterByToken(candidates []queryindex.Row, trace *stream.Trace) []queryindex.Row {
	target := trace.Delimiter
	out := make([]queryindex.Row, 0, len(candidates))
	for _, row := range candidates {
		if tokenMatches(row.Tokens, target) {
			out = append(out, row)
		}
	}
	return out
}

func tokenMatches(token, target []int) bool {
	if len(token) != len(target) {
		return false
	}
	for i, t := range target {
		if t == -1 {
			continue
		}
		if t != token[i] {
			return false
		}
	}
	return true
}

// FilterByPattern narrows candidates to those with at least one of
// the eight bit-alignment pattern variants matching the trace's
// Pattern column within every section delimited by a -1 (ambiguous)
// position. No-op when the trace carries no pattern column (HTTP/1.1
// or a changing-byte site, spec §4.6).
func FilterByPattern(candidates []queryindex.Row, trace *stream.Trace) []queryindex.Row {
	if trace.Pattern == nil {
		return candidates
	}
	target := trace.Pattern
	if len(target) > 0 {
		target = target[1:]
	}
	out := make([]queryindex.Row, 0, len(candidates))
	for _, row := range candidates {
		if anyPatternMatches(row.Patterns, target) {
			out = append(out, row)
		}
	}
	return out
}

func anyPatternMatches(patterns [8][]int32, target []int32) bool {
	sections := splitSections(target)
	for _, pattern := range patterns {
		if pattern == nil {
			continue
		}
		if sectionsMatch(pattern, target, sections) {
			return true
		}
	}
	return false
}

// splitSections breaks target into the runs delimited by -1 markers,
// mirroring __check_patterns' start/end bookkeeping.
func splitSections(target []int32) [][2]int {
	if len(target) == 0 {
		return nil
	}
	var sections [][2]int
	start := 0
	for i, v := range target {
		if v == -1 {
			sections = append(sections, [2]int{start, i})
			start = i + 1
		}
	}
	sections = append(sections, [2]int{start, len(target)})
	return sections
}

func sectionsMatch(pattern, target []int32, sections [][2]int) bool {
	for _, sec := range sections {
		lo, hi := sec[0], sec[1]
		if hi > len(pattern) {
			return false
		}
		if !equalInt32(pattern[lo:hi], target[lo:hi]) {
			return false
		}
	}
	return true
}

func equalInt32(a, b []int32) bool {
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

// RankByRhythm scores every candidate row against trace's timing
// Interval column and returns them in ascending-score (best-first)
// order with Rank populated.
func RankByRhythm(candidates []queryindex.Row, trace *stream.Trace, chinese bool) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]Candidate, 0, len(candidates))
	for _, row := range candidates {
		score, ok := rhythmScore(row, trace, chinese)
		if !ok {
			continue
		}
		out = append(out, Candidate{Row: row, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// rhythmScore walks the trace's intervals and the row's bigram model
// in lockstep, skipping synthetic (cancel-prepend) 1000ms intervals
// and inter-token gaps whose bigram model is the zero vector.
// Grounded on queries.py's __get_score.
func rhythmScore(row queryindex.Row, trace *stream.Trace, chinese bool) (float64, bool) {
	target := trace.Interval
	mean, std := row.RhythmMean, row.RhythmStd

	var score float64
	var n int
	i, j := 1, 1
	for i < len(target) {
		if target[i] == 1000 {
			i++
			j++
			continue
		}
		if j >= len(mean) {
			break
		}
		if mean[j] == 0 {
			i++
			j++
			if chinese {
				j++
			}
			continue
		}

		score += normScore(float64(target[i]), mean[j], std[j])
		n++
		i++
		j++
	}

	if n == 0 {
		return 0, false
	}
	return score / float64(n), true
}

// normScore is -log10 of the normal-distribution PDF at x. No gonum
// dependency appears anywhere in the corpus for this one closed-form
// expression (see DESIGN.md); math.Exp/math.Sqrt express it directly.
func normScore(x, mean, std float64) float64 {
	if std <= 0 {
		std = 1
	}
	z := (x - mean) / std
	density := math.Exp(-0.5*z*z) / (std * math.Sqrt(2*math.Pi))
	if density <= 0 {
		density = math.SmallestNonzeroFloat64
	}
	return -math.Log10(density)
}
