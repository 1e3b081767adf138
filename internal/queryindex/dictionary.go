package queryindex

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"qris/internal/qerr"
)

// Romanizer converts a Chinese query string to Pinyin. No Pinyin
// library appears anywhere in the retrieved example corpus, so this is
// expressed as an injected interface boundary rather than a bundled
// third-party dependency — callers running in --chinese mode supply a
// concrete implementation (e.g. wrapping a dictionary lookup service)
// at wiring time.
type Romanizer interface {
	// Continuous returns the romanization with no syllable separator,
	// for keystroke-count purposes.
	Continuous(query string) string

	// Syllables splits the romanization into its syllables, for
	// delimiter/token sequencing.
	Syllables(query string) []string
}

// LoadQueries reads a single-column CSV of candidate query strings,
// deduplicating repeated rows while preserving first-seen order.
func LoadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "open query dictionary %q: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	seen := make(map[string]bool)
	var queries []string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "read query dictionary %q: %v", path, err)
		}
		if len(record) == 0 {
			continue
		}
		q := record[0]
		if seen[q] {
			continue
		}
		seen[q] = true
		queries = append(queries, q)
	}
	return queries, nil
}

// LoadBigrams reads a four-column CSV (first_letter, second_letter,
// mean, std) into a lookup table keyed by the ordered letter pair.
func LoadBigrams(path string) (map[[2]rune]Bigram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "open bigram table %q: %v", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	out := make(map[[2]rune]Bigram)
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "read bigram table %q: %v", path, err)
		}
		if first {
			first = false
			if _, convErr := strconv.ParseFloat(record[2], 64); convErr != nil {
				continue // header row
			}
		}
		if len(record) < 4 {
			continue
		}
		a := []rune(record[0])
		b := []rune(record[1])
		if len(a) != 1 || len(b) != 1 {
			continue
		}
		mean, err1 := strconv.ParseFloat(record[2], 64)
		std, err2 := strconv.ParseFloat(record[3], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out[[2]rune{a[0], b[0]}] = Bigram{Mean: mean, Std: std}
	}
	return out, nil
}
