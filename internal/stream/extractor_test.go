package stream

import (
	"testing"

	"qris/internal/dfa"
	"qris/internal/siteprofile"
)

func mustRegistry(t *testing.T) *siteprofile.Registry {
	t.Helper()
	r, err := siteprofile.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestExtractGoogleScenario(t *testing.T) {
	// spec.md scenario S1: google H2 enc-apostrophe counter=cp change_byte=0
	r := mustRegistry(t)
	p, _ := r.Lookup("google")

	times := []int64{0, 100, 250, 400, 600}
	sizes := []int32{500, 501, 501, 503, 504}

	trace := Extract(sizes, times, p, false, true, false)
	if trace.Len() != 5 {
		t.Fatalf("expected trace length 5, got %d (indices=%v)", trace.Len(), trace.Indices)
	}
	want := []dfa.State{dfa.Ltr, dfa.Ltr, dfa.Ltr0, dfa.SpaPct, dfa.Ltr}
	for i, s := range want {
		if trace.States[i] != s {
			t.Errorf("state[%d] = %v, want %v", i, trace.States[i], s)
		}
	}
}

func TestExtractSinglePacketYieldsShortTrace(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("bing")
	trace := Extract([]int32{500}, []int64{0}, p, false, true, false)
	if trace.Len() > 1 {
		t.Errorf("single-packet stream should not yield a trace longer than 1, got %d", trace.Len())
	}
}

func TestExtractRejectsConstantSizeWhenChangeByteSet(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("tmall") // change_byte=10
	times := []int64{0, 100, 250, 400, 600}
	sizes := []int32{500, 500, 500, 500, 500}
	trace := Extract(sizes, times, p, false, true, false)
	if trace.Len() > 2 {
		t.Errorf("constant-size stream on change_byte site should be rejected, got len %d", trace.Len())
	}
}

func TestExtractTimesMonotonicWithinTrace(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("google")
	times := []int64{0, 100, 250, 400, 600}
	sizes := []int32{500, 501, 501, 503, 504}
	trace := Extract(sizes, times, p, false, true, false)
	for i := 1; i < trace.Len(); i++ {
		gap := trace.Times[i] - trace.Times[i-1]
		if gap <= 20 || gap >= 1000 {
			t.Errorf("gap[%d] = %d violates 20 < gap < 1000 invariant", i, gap)
		}
	}
}

func TestExtractInitialStateIsLtr(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("google")
	times := []int64{0, 100, 250, 400, 600}
	sizes := []int32{500, 501, 501, 503, 504}
	trace := Extract(sizes, times, p, false, true, false)
	if trace.Len() > 0 && trace.States[0] != dfa.Ltr {
		t.Errorf("expected initial state Ltr, got %v", trace.States[0])
	}
	for _, s := range trace.States {
		if s == dfa.Nul {
			t.Errorf("Nul must never appear in an accepted trace")
		}
	}
}
