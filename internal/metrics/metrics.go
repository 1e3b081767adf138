// Package metrics provides lightweight, lock-minimal performance
// counters for one inference run.
//
// Counters use sync/atomic so the correlate worker pool's hot path
// incurs no mutex contention. Latency statistics use a single mutex
// per dimension; they are updated at most once per stream or rank
// pass.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all runtime counters for one inference run. The zero
// value is valid and ready to use; prefer New() for clarity.
type Metrics struct {
	StreamsScanned   atomic.Int64
	LASRebuilds      atomic.Int64
	CandidatesLength atomic.Int64
	CandidatesToken  atomic.Int64
	CandidatesRhythm atomic.Int64

	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	lasMu   sync.Mutex
	lasStat latencyStats

	rankMu   sync.Mutex
	rankStat latencyStats

	startTime time.Time
}

// New returns a new Metrics with the start time recorded.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordLASLatency records the duration of one correlation pass (every
// StreamExtractor run over a capture, as timed around correlate.Run).
func (m *Metrics) RecordLASLatency(d time.Duration) {
	m.lasMu.Lock()
	m.lasStat.record(float64(d.Microseconds()) / 1000.0)
	m.lasMu.Unlock()
}

// RecordRankLatency records the duration of one length→token→pattern→
// rhythm narrowing pass.
func (m *Metrics) RecordRankLatency(d time.Duration) {
	m.rankMu.Lock()
	m.rankStat.record(float64(d.Microseconds()) / 1000.0)
	m.rankMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON
// encoding and for the --verbose CLI printout.
func (m *Metrics) Snapshot() Snapshot {
	m.lasMu.Lock()
	las := m.lasStat.snapshot()
	m.lasMu.Unlock()

	m.rankMu.Lock()
	rank := m.rankStat.snapshot()
	m.rankMu.Unlock()

	return Snapshot{
		Streams: StreamSnapshot{
			Scanned:     m.StreamsScanned.Load(),
			LASRebuilds: m.LASRebuilds.Load(),
		},
		Candidates: CandidateSnapshot{
			AfterLength: m.CandidatesLength.Load(),
			AfterToken:  m.CandidatesToken.Load(),
			AfterRhythm: m.CandidatesRhythm.Load(),
		},
		Cache: CacheSnapshot{
			Hits:   m.CacheHits.Load(),
			Misses: m.CacheMisses.Load(),
		},
		Latency: LatencyGroup{
			LASMs:  las,
			RankMs: rank,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Streams    StreamSnapshot    `json:"streams"`
	Candidates CandidateSnapshot `json:"candidates"`
	Cache      CacheSnapshot     `json:"cache"`
	Latency    LatencyGroup      `json:"latency"`
	UptimeSecs float64           `json:"uptimeSecs"`
}

// StreamSnapshot holds stream-scan counters.
type StreamSnapshot struct {
	Scanned     int64 `json:"scanned"`
	LASRebuilds int64 `json:"lasRebuilds"`
}

// CandidateSnapshot holds the ranker's progressive-narrowing counts.
type CandidateSnapshot struct {
	AfterLength int64 `json:"afterLength"`
	AfterToken  int64 `json:"afterToken"`
	AfterRhythm int64 `json:"afterRhythm"`
}

// CacheSnapshot holds the QueryIndex persisted-cache hit/miss counts.
type CacheSnapshot struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// LatencyGroup groups the two latency dimensions.
type LatencyGroup struct {
	LASMs  LatencySnapshot `json:"lasMs"`
	RankMs LatencySnapshot `json:"rankMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
