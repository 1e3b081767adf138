package metrics

import (
	"testing"
	"time"
)

func TestNewStartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestZeroValueSnapshotSafe(t *testing.T) {
	var m Metrics
	s := m.Snapshot()
	if s.Streams.Scanned != 0 {
		t.Errorf("expected 0 streams scanned, got %d", s.Streams.Scanned)
	}
}

func TestStreamCounters(t *testing.T) {
	m := New()
	m.StreamsScanned.Add(10)
	m.LASRebuilds.Add(4)

	s := m.Snapshot()
	if s.Streams.Scanned != 10 {
		t.Errorf("Scanned: got %d, want 10", s.Streams.Scanned)
	}
	if s.Streams.LASRebuilds != 4 {
		t.Errorf("LASRebuilds: got %d, want 4", s.Streams.LASRebuilds)
	}
}

func TestCandidateCounters(t *testing.T) {
	m := New()
	m.CandidatesLength.Add(500)
	m.CandidatesToken.Add(80)
	m.CandidatesRhythm.Add(5)

	s := m.Snapshot()
	if s.Candidates.AfterLength != 500 {
		t.Errorf("AfterLength: got %d, want 500", s.Candidates.AfterLength)
	}
	if s.Candidates.AfterToken != 80 {
		t.Errorf("AfterToken: got %d, want 80", s.Candidates.AfterToken)
	}
	if s.Candidates.AfterRhythm != 5 {
		t.Errorf("AfterRhythm: got %d, want 5", s.Candidates.AfterRhythm)
	}
}

func TestCacheCounters(t *testing.T) {
	m := New()
	m.CacheHits.Add(3)
	m.CacheMisses.Add(1)

	s := m.Snapshot()
	if s.Cache.Hits != 3 {
		t.Errorf("Hits: got %d, want 3", s.Cache.Hits)
	}
	if s.Cache.Misses != 1 {
		t.Errorf("Misses: got %d, want 1", s.Cache.Misses)
	}
}

func TestRecordLASLatencySingleSample(t *testing.T) {
	m := New()
	m.RecordLASLatency(100 * time.Millisecond)

	s := m.Snapshot()
	if s.Latency.LASMs.Count != 1 {
		t.Errorf("Count: got %d, want 1", s.Latency.LASMs.Count)
	}
	if s.Latency.LASMs.MinMs < 90 || s.Latency.LASMs.MinMs > 110 {
		t.Errorf("MinMs: got %f, want ~100", s.Latency.LASMs.MinMs)
	}
}

func TestRecordRankLatencyMinMaxMean(t *testing.T) {
	m := New()
	m.RecordRankLatency(50 * time.Millisecond)
	m.RecordRankLatency(150 * time.Millisecond)
	m.RecordRankLatency(100 * time.Millisecond)

	s := m.Snapshot()
	ls := s.Latency.RankMs
	if ls.Count != 3 {
		t.Errorf("Count: got %d, want 3", ls.Count)
	}
	if ls.MinMs > 60 {
		t.Errorf("MinMs too high: %f", ls.MinMs)
	}
	if ls.MaxMs < 140 {
		t.Errorf("MaxMs too low: %f", ls.MaxMs)
	}
	if ls.MeanMs < 90 || ls.MeanMs > 110 {
		t.Errorf("MeanMs: got %f, want ~100", ls.MeanMs)
	}
}

func TestSnapshotLatencyEmptyIsZeroValue(t *testing.T) {
	m := New()
	s := m.Snapshot()
	if s.Latency.LASMs.Count != 0 {
		t.Errorf("empty LAS latency count should be 0")
	}
	if s.Latency.RankMs.Count != 0 {
		t.Errorf("empty rank latency count should be 0")
	}
}

func TestSnapshotUptimePositive(t *testing.T) {
	m := New()
	time.Sleep(5 * time.Millisecond)
	s := m.Snapshot()
	if s.UptimeSecs <= 0 {
		t.Errorf("UptimeSecs should be positive, got %f", s.UptimeSecs)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{1.236, 1.24},
		{1.234, 1.23},
		{100.0, 100.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		got := round2(c.input)
		if got != c.want {
			t.Errorf("round2(%f) = %f, want %f", c.input, got, c.want)
		}
	}
}

func TestLatencyStatsRecord(t *testing.T) {
	var s latencyStats
	s.record(10)
	s.record(20)
	s.record(15)

	snap := s.snapshot()
	if snap.Count != 3 {
		t.Errorf("Count: got %d, want 3", snap.Count)
	}
	if snap.MinMs != 10 {
		t.Errorf("MinMs: got %f, want 10", snap.MinMs)
	}
	if snap.MaxMs != 20 {
		t.Errorf("MaxMs: got %f, want 20", snap.MaxMs)
	}
	if snap.MeanMs != 15 {
		t.Errorf("MeanMs: got %f, want 15", snap.MeanMs)
	}
}

func TestLatencyStatsEmpty(t *testing.T) {
	var s latencyStats
	snap := s.snapshot()
	if snap.Count != 0 || snap.MinMs != 0 || snap.MaxMs != 0 || snap.MeanMs != 0 {
		t.Errorf("empty stats snapshot should be zero, got %+v", snap)
	}
}
