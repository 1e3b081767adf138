package queryindex

import (
	"strings"
	"unicode"

	"qris/internal/dfa"
	"qris/internal/siteprofile"
)

// Build precomputes an Index over queries for profile under the given
// language. bigrams feeds the rhythm model; romanizer is required
// (and must be non-nil) when chinese is true. Grounded on
// original_source/qris/queries.py's _load_length/_load_token/
// _load_pattern/_load_rhythm.
func Build(profile *siteprofile.Profile, chinese bool, queries []string, bigrams map[[2]rune]Bigram, romanizer Romanizer) *Index {
	_, ctStart := profile.Effective(chinese)
	patternsValid := profile.HTTPVersion == dfa.HTTP2 && profile.ChangeByte == 0

	rows := make([]Row, len(queries))
	for i, q := range queries {
		var row Row
		row.Query = q

		if chinese {
			continuous := romanizer.Continuous(q)
			row.Length = len([]rune(continuous))

			syllables := romanizer.Syllables(q)
			row.Tokens = getSequence(syllables, true)

			if patternsValid {
				joined := strings.Join(syllables, "'")
				row.Patterns = ComputePatterns(joined, profile, ctStart)
			}

			dashed := strings.Join(syllables, "-")
			row.RhythmMean, row.RhythmStd = rhythmFor(dashed, bigrams, profile.TrimSpace)
		} else {
			if profile.TrimSpace {
				row.Length = len([]rune(strings.ReplaceAll(q, " ", "")))
			} else {
				row.Length = len([]rune(q))
			}

			words := strings.Fields(q)
			row.Tokens = getSequence(words, profile.TrimSpace)

			if patternsValid {
				row.Patterns = ComputePatterns(q, profile, ctStart)
			}

			row.RhythmMean, row.RhythmStd = rhythmFor(q, bigrams, profile.TrimSpace)
		}

		rows[i] = row
	}

	return &Index{Rows: rows, Chinese: chinese, TrimSpace: profile.TrimSpace}
}

// getSequence builds the 0/1 delimiter sequence across a list of
// tokens (words or Pinyin syllables): zero within a token, one at
// each token boundary. truncateLast drops the final position appended
// for every token after the first, keeping the sequence the same
// length as the query's continuous (separator-free) character count —
// ported as-is from __get_sequence.
func getSequence(tokens []string, truncateLast bool) []int {
	if len(tokens) == 0 {
		return nil
	}
	seq := make([]int, len([]rune(tokens[0])))
	for i := 0; i < len(tokens)-1; i++ {
		seq = append(seq, 1)
		for range []rune(tokens[i+1]) {
			seq = append(seq, 0)
		}
		if truncateLast {
			seq = seq[:len(seq)-1]
		}
	}
	return seq
}

// rhythmFor walks s letter pair by letter pair, looking up each
// lowercase bigram's timing model. Index 0 is always the zero vector:
// there is no interval before the first keystroke. A transition into
// a trimmed trailing space is skipped entirely rather than scored.
func rhythmFor(s string, bigrams map[[2]rune]Bigram, trimSpace bool) (mean, std []float64) {
	runes := []rune(s)
	mean = []float64{0}
	std = []float64{0}
	for i := 0; i < len(runes)-1; i++ {
		var m, sd float64
		if unicode.IsLower(runes[i]) && unicode.IsLower(runes[i+1]) {
			if bg, ok := bigrams[[2]rune{runes[i], runes[i+1]}]; ok {
				m, sd = bg.Mean, bg.Std
			}
		}
		if runes[i+1] == ' ' && trimSpace {
			continue
		}
		mean = append(mean, m)
		std = append(std, sd)
	}
	return mean, std
}
