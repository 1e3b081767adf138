// Package correlate drives StreamExtractor across every packet
// stream in a capture, reconciles HTTP/1.1 vs HTTP/2 stream grouping,
// site-specific double runs and stretch-size search, and produces the
// list of post-processed candidate keystroke traces the ranker scores.
package correlate

// Observation is one externally-supplied packet: already filtered to
// TLS application-data records bound for a server, deduplicated of
// retransmissions, sized by TLS record length rather than TCP length
// (spec §6). TimeMS is relative to the first packet in the capture.
type Observation struct {
	TimeMS    int64
	Src, Dst  string
	SPort     int
	SizeBytes int32
}

// streamKey groups observations into one logical request stream.
// HTTP/1.1 groups by (Src,Dst); HTTP/2 groups by (Src,SPort,Dst)
// since distinct source ports are distinct H2 connections (spec §4.4).
type streamKey struct {
	Src, Dst string
	SPort    int
}
