// Package siteprofile declares, per target website, exactly how each
// keystroke perturbs request size, and the deterministic adjusters
// that normalize a raw packet-size delta before the dfa package
// classifies it.
package siteprofile

import (
	"qris/internal/dfa"
	"qris/internal/qerr"
)

// CounterMode selects how a site's counter query parameter behaves.
type CounterMode int

const (
	// CounterNone means the site has no counter parameter.
	CounterNone CounterMode = iota
	// CounterCursor is the "cp" (cursor position) parameter: starts at
	// 1 and advances by 1 per keystroke, by 2 at apostrophe positions.
	CounterCursor
	// CounterFromN is a "cN" parameter: starts at a fixed N and
	// advances by 1 per keystroke with no apostrophe bonus.
	CounterFromN
)

// ByteRange is an inclusive-exclusive index range, [Lo, Hi), over
// keystroke positions — mirrors Python's range(lo, hi).
type ByteRange struct {
	Lo, Hi int
}

// Contains reports whether idx falls in [Lo, Hi).
func (r ByteRange) Contains(idx int) bool {
	return idx >= r.Lo && idx < r.Hi
}

// Empty reports whether the range contains no indices.
func (r ByteRange) Empty() bool {
	return r.Hi <= r.Lo
}

// ConflictCounters are the fixed counter values at which Huffman byte
// boundaries create ambiguity between a letter and a delimiter.
var ConflictCounters = [4]int32{10, 20, 40, 50}

// Profile is the immutable, declarative description of one target
// site. Built once from a registry entry and never mutated; a
// Profile is safe to share across goroutines (spec's concurrency
// model parallelizes StreamExtractor across streams of the same
// capture, all reading the same Profile).
type Profile struct {
	Name             string
	ServerName       string
	HTTPVersion      dfa.Version
	Language         dfa.Language
	IndexHeader      bool
	EncodeSpace      bool
	TrimSpace        bool
	EncodeApostrophe bool
	CounterMode      CounterMode
	CounterStart     int32
	ChangeByte       int32
	AddByte          int32
	AddByteRange     ByteRange

	// Optional features. A nil/zero value means "not present," mirroring
	// Python's hasattr(self.website, ...) checks.
	Threshold *int32
	Stretch   []int32
	GSMSS     bool
	Pwd       bool
	BDSvrTM   bool
	Cancel    int32
	FakeSpace bool

	transfer dfa.TransferFunc
}

// Transfer runs this profile's DFA family member.
func (p *Profile) Transfer(delta int32, state dfa.State, enc bool) dfa.State {
	return dfa.For(p.HTTPVersion, p.Language)(delta, state, enc)
}

// Build validates a registry entry and attaches its DFA transfer
// function. Mirrors Website.__init__'s "Check features" block.
func Build(e Entry) (*Profile, error) {
	p := &Profile{
		Name:             e.Name,
		ServerName:       e.ServerName,
		HTTPVersion:      e.HTTPVersion,
		Language:         dfa.English,
		IndexHeader:      e.IndexHeader,
		EncodeSpace:      e.EncodeSpace,
		TrimSpace:        e.TrimSpace,
		EncodeApostrophe: e.EncodeApostrophe,
		CounterMode:      e.CounterMode,
		CounterStart:     e.CounterStart,
		ChangeByte:       e.ChangeByte,
		AddByte:          e.AddByte,
		AddByteRange:     e.AddByteRange,
		Threshold:        e.Threshold,
		Stretch:          e.Stretch,
		GSMSS:            e.GSMSS,
		Pwd:              e.Pwd,
		BDSvrTM:          e.BDSvrTM,
		Cancel:           e.Cancel,
		FakeSpace:        e.FakeSpace,
	}

	if p.HTTPVersion == dfa.HTTP2 && p.ChangeByte >= 16 {
		return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "%s: HTTP/2 change_byte must be < 16, got %d", p.Name, p.ChangeByte)
	}
	if p.HTTPVersion == dfa.HTTP11 && p.AddByte >= 2 {
		return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "%s: HTTP/1.1 add_byte must be < 2, got %d", p.Name, p.AddByte)
	}
	if p.HTTPVersion == dfa.HTTP2 && p.AddByte >= 3 {
		return nil, qerr.Wrap(qerr.ErrBadSiteProfile, "%s: HTTP/2 add_byte must be < 3, got %d", p.Name, p.AddByte)
	}

	// Language is bound per request (English vs Pinyin), so we build a
	// transfer function per call site instead of baking it in here;
	// For picks the right automaton given the caller's chinese flag.
	p.transfer = nil
	return p, nil
}

// TransferFor resolves the DFA transfer function for a request
// language. Called once per StreamExtractor run, not per step.
func (p *Profile) TransferFor(chinese bool) dfa.TransferFunc {
	lang := dfa.English
	if chinese {
		lang = dfa.Pinyin
	}
	return dfa.For(p.HTTPVersion, lang)
}

// Effective computes the (indexHeader, counterStart) pair actually
// used for one run, applying the Yahoo Chinese override (spec.md §9
// open question (c)) without mutating the shared Profile.
func (p *Profile) Effective(chinese bool) (indexHeader bool, counterStart int32) {
	indexHeader, counterStart = p.IndexHeader, p.CounterStart
	if p.Name == "yahoo" && chinese {
		indexHeader = false
		counterStart = 2
	}
	return indexHeader, counterStart
}

func (p *Profile) String() string {
	return p.Name
}

// Entry is the registry's raw, declarative shape — one literal per
// site, directly mirroring websites.py's SITE_FEATURES table.
type Entry struct {
	Name             string
	ServerName       string
	HTTPVersion      dfa.Version
	IndexHeader      bool
	EncodeSpace      bool
	TrimSpace        bool
	EncodeApostrophe bool
	CounterMode      CounterMode
	CounterStart     int32
	ChangeByte       int32
	AddByte          int32
	AddByteRange     ByteRange

	Threshold *int32
	Stretch   []int32
	GSMSS     bool
	Pwd       bool
	BDSvrTM   bool
	Cancel    int32
	FakeSpace bool
}

func threshold(v int32) *int32 { return &v }
