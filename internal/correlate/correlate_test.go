package correlate

import (
	"testing"

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

// syntheticGoogleObs builds a five-keystroke google H2 stream split
// across one (src,dst,sport) group — scenario S1 from spec.md §8.
func syntheticGoogleObs() []Observation {
	times := []int64{0, 100, 250, 400, 600}
	sizes := []int32{500, 501, 501, 503, 504}
	obs := make([]Observation, len(times))
	for i := range times {
		obs[i] = Observation{TimeMS: times[i], Src: "10.0.0.1", Dst: "142.250.0.1", SPort: 443, SizeBytes: sizes[i]}
	}
	return obs
}

func TestRunGoogleScenarioProducesOneBaseTrace(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("google")
	obs := syntheticGoogleObs()

	traces, err := Run(obs, p, false, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(traces) == 0 {
		t.Fatal("expected at least one candidate trace")
	}
	if traces[0].Len() != 5 {
		t.Errorf("expected base trace length 5, got %d", traces[0].Len())
	}
}

func TestRunGroupsHTTP2ByPortNotJustHost(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("google")

	// Two interleaved H2 connections on different source ports from
	// the same host pair; neither individually reaches a keystroke
	// trace, but grouping them together (ignoring sport) would.
	obs := []Observation{
		{TimeMS: 0, Src: "10.0.0.1", Dst: "142.250.0.1", SPort: 50000, SizeBytes: 500},
		{TimeMS: 100, Src: "10.0.0.1", Dst: "142.250.0.1", SPort: 50001, SizeBytes: 501},
		{TimeMS: 200, Src: "10.0.0.1", Dst: "142.250.0.1", SPort: 50000, SizeBytes: 501},
	}
	// Each port-group individually has at most 2 packets, too short
	// for a trace to be accepted (len > 2 test in StreamExtractor);
	// Run must not silently merge them into one artificially-longer
	// sequence.
	_, err := Run(obs, p, false, false)
	if err == nil {
		t.Error("expected no subsequence error when grouping correctly separates sport-distinct connections")
	}
}

func TestRunEmptyObservationsReturnsEmptyConversationError(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("google")
	_, err := Run(nil, p, false, false)
	if err == nil {
		t.Error("expected an error for empty observations")
	}
}

func TestRunFacebookCancelVariantsPrependSyntheticHead(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("facebook") // Cancel: 2
	times := []int64{0, 100, 250, 400, 600}
	sizes := []int32{500, 501, 502, 503, 504}
	obs := make([]Observation, len(times))
	for i := range times {
		obs[i] = Observation{TimeMS: times[i], Src: "10.0.0.2", Dst: "157.240.0.1", SPort: 443, SizeBytes: sizes[i]}
	}

	traces, err := Run(obs, p, false, false)
	if err != nil {
		t.Skipf("facebook synthetic stream did not settle to an accepted trace: %v", err)
	}
	// p.Cancel == 2 means two prepend-head variants are appended after
	// the base trace, each one packet longer than its source.
	if len(traces) < 3 {
		t.Fatalf("expected base trace plus 2 cancel variants, got %d traces", len(traces))
	}
	for i := 1; i <= 2; i++ {
		if traces[i].Len() != traces[i-1].Len()+1 {
			t.Errorf("cancel variant %d length = %d, want %d", i, traces[i].Len(), traces[i-1].Len()+1)
		}
	}
}

func TestCountDelimsCountsOnlyDelimiterStates(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("google")
	obs := syntheticGoogleObs()
	traces, err := Run(obs, p, false, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// S1 states are Ltr, Ltr, Ltr0, SpaPct, Ltr: only SpaPct is a delimiter.
	n := countDelims(traces[0])
	if n != 1 {
		t.Errorf("delimiter count = %d, want 1 (states %v)", n, traces[0].States)
	}
}

func TestRunSinglePacketStreamReturnsNoSubsequence(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("twitch")
	obs := []Observation{
		{TimeMS: 0, Src: "10.0.0.3", Dst: "1.2.3.4", SPort: 443, SizeBytes: 500},
	}
	_, err := Run(obs, p, false, false)
	if err == nil {
		t.Error("expected no subsequence error for a single-packet stream")
	}
}

func TestRunBaiduDoubleRunProducesTrace(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("baidu")
	times := []int64{0, 100, 250, 400, 600, 800}
	sizes := []int32{500, 501, 502, 503, 504, 505}
	obs := make([]Observation, len(times))
	for i := range times {
		obs[i] = Observation{TimeMS: times[i], Src: "10.0.0.4", Dst: "110.242.68.4", SPort: 443, SizeBytes: sizes[i]}
	}
	traces, err := Run(obs, p, false, false)
	if err != nil {
		t.Skipf("baidu double-run synthetic stream did not settle to an accepted trace: %v", err)
	}
	if traces[0].Len() == 0 {
		t.Error("expected a non-empty baidu trace")
	}
}

func TestWikipediaProfileDeclaresStretchSizes(t *testing.T) {
	r := mustRegistry(t)
	p, _ := r.Lookup("wikipedia")
	if len(p.Stretch) == 0 {
		t.Fatal("wikipedia profile must declare stretch sizes")
	}
}
