package queryindex

import (
	"path/filepath"
	"testing"

	"qris/internal/siteprofile"
)

type fakeRomanizer struct{}

func (fakeRomanizer) Continuous(q string) string {
	switch q {
	case "nihao":
		return "nihao"
	default:
		return q
	}
}

func (fakeRomanizer) Syllables(q string) []string {
	switch q {
	case "nihao":
		return []string{"ni", "hao"}
	default:
		return []string{q}
	}
}

func mustProfile(t *testing.T, name string) *siteprofile.Profile {
	t.Helper()
	r, err := siteprofile.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	p, ok := r.Lookup(name)
	if !ok {
		t.Fatalf("site %q not registered", name)
	}
	return p
}

func TestGetSequenceEnglishTwoWords(t *testing.T) {
	seq := getSequence([]string{"new", "york"}, false)
	want := []int{0, 0, 0, 1, 0, 0, 0, 0}
	if len(seq) != len(want) {
		t.Fatalf("length = %d, want %d (%v)", len(seq), len(want), seq)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Errorf("seq[%d] = %d, want %d", i, seq[i], want[i])
		}
	}
}

func TestGetSequencePinyinMatchesContinuousLength(t *testing.T) {
	seq := getSequence([]string{"ni", "hao"}, true)
	if len(seq) != 5 {
		t.Errorf("length = %d, want 5 (continuous \"nihao\" length)", len(seq))
	}
}

func TestGetSequenceSingleToken(t *testing.T) {
	seq := getSequence([]string{"cat"}, false)
	if len(seq) != 3 {
		t.Fatalf("length = %d, want 3", len(seq))
	}
	for _, v := range seq {
		if v != 0 {
			t.Errorf("single-token sequence must be all zero, got %v", seq)
		}
	}
}

func TestComputePatternsHTTP2LengthIsCharsMinusOne(t *testing.T) {
	p := mustProfile(t, "google")
	patterns := ComputePatterns("cat", p, 1)
	for i, pat := range patterns {
		if len(pat) != 2 {
			t.Errorf("variant %d length = %d, want 2", i, len(pat))
		}
	}
}

func TestComputePatternsEmptyQueryYieldsNilPatterns(t *testing.T) {
	p := mustProfile(t, "google")
	patterns := ComputePatterns("", p, 1)
	for i, pat := range patterns {
		if pat != nil {
			t.Errorf("variant %d expected nil for empty query, got %v", i, pat)
		}
	}
}

func TestRhythmForZeroIndexAlwaysZero(t *testing.T) {
	bigrams := map[[2]rune]Bigram{{'c', 'a'}: {Mean: 120, Std: 15}}
	mean, std := rhythmFor("cat", bigrams, false)
	if mean[0] != 0 || std[0] != 0 {
		t.Errorf("expected zero vector at index 0, got mean=%v std=%v", mean[0], std[0])
	}
	if len(mean) != 3 || len(std) != 3 {
		t.Fatalf("expected length 3, got mean=%d std=%d", len(mean), len(std))
	}
	if mean[1] != 120 || std[1] != 15 {
		t.Errorf("expected bigram (c,a) model at index 1, got mean=%v std=%v", mean[1], std[1])
	}
}

func TestRhythmForSkipsTrimmedSpaceTransition(t *testing.T) {
	bigrams := map[[2]rune]Bigram{}
	mean, _ := rhythmFor("a b", bigrams, true)
	// "a"->" " is skipped (trim_space), " "->"b" is kept (zero model).
	if len(mean) != 2 {
		t.Fatalf("expected length 2 with trim_space skipping the space transition, got %d (%v)", len(mean), mean)
	}
}

func TestBuildEnglishRowLengthMatchesQueryRuneCount(t *testing.T) {
	p := mustProfile(t, "google")
	idx := Build(p, false, []string{"new york pizza"}, nil, nil)
	if len(idx.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(idx.Rows))
	}
	want := len([]rune("new york pizza"))
	if idx.Rows[0].Length != want {
		t.Errorf("Length = %d, want %d", idx.Rows[0].Length, want)
	}
}

func TestBuildSkipsPatternsForHTTP11(t *testing.T) {
	p := mustProfile(t, "facebook") // HTTP/1.1
	idx := Build(p, false, []string{"cats"}, nil, nil)
	for i, pat := range idx.Rows[0].Patterns {
		if pat != nil {
			t.Errorf("HTTP/1.1 profile should not populate pattern variant %d, got %v", i, pat)
		}
	}
}

func TestBuildSkipsPatternsForNonZeroChangeByte(t *testing.T) {
	p := mustProfile(t, "tmall") // HTTP/2, ChangeByte: 10
	idx := Build(p, false, []string{"cats"}, nil, nil)
	for i, pat := range idx.Rows[0].Patterns {
		if pat != nil {
			t.Errorf("change_byte profile should not populate pattern variant %d, got %v", i, pat)
		}
	}
}

func TestBuildChineseUsesRomanizer(t *testing.T) {
	p := mustProfile(t, "google")
	idx := Build(p, true, []string{"nihao"}, nil, fakeRomanizer{})
	if idx.Rows[0].Length != 5 {
		t.Errorf("Length = %d, want 5", idx.Rows[0].Length)
	}
	if len(idx.Rows[0].Tokens) != 5 {
		t.Errorf("Tokens length = %d, want 5", len(idx.Rows[0].Tokens))
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "queryindex.db")
	c, err := OpenCache(dbPath)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer c.Close()

	idx := &Index{Rows: []Row{{Query: "cats", Length: 4}}, Chinese: false, TrimSpace: false}
	if err := c.Put("google", false, false, 1, idx); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := c.Get("google", false, false, 1)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Rows) != 1 || got.Rows[0].Query != "cats" {
		t.Errorf("unexpected cached rows: %+v", got.Rows)
	}

	if _, ok := c.Get("google", false, false, 2); ok {
		t.Error("expected cache miss on query-set size mismatch")
	}
}
