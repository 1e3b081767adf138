package siteprofile

import "qris/internal/dfa"

// registryEntries is the built-in nine-site table, ported field for
// field from websites.py's SITE_FEATURES. AddByteRange uses Go's
// half-open [Lo,Hi) convention for Python's range(lo, hi).
var registryEntries = []Entry{
	{
		Name: "google", ServerName: "www.google.com", HTTPVersion: dfa.HTTP2,
		IndexHeader: false, EncodeSpace: true, TrimSpace: false, EncodeApostrophe: true,
		CounterMode: CounterCursor, CounterStart: 1, ChangeByte: 0, AddByte: 0,
		AddByteRange: ByteRange{0, 0},
		Stretch:      []int32{173, 174, 175}, GSMSS: true,
	},
	{
		Name: "tmall", ServerName: "suggest.taobao.com", HTTPVersion: dfa.HTTP2,
		IndexHeader: false, EncodeSpace: true, TrimSpace: true, EncodeApostrophe: true,
		CounterMode: CounterNone, CounterStart: 0, ChangeByte: 10, AddByte: 2,
		AddByteRange: ByteRange{1, 4},
	},
	{
		Name: "facebook", ServerName: "www.facebook.com", HTTPVersion: dfa.HTTP11,
		IndexHeader: false, EncodeSpace: true, TrimSpace: false, EncodeApostrophe: false,
		CounterMode: CounterNone, CounterStart: 0, ChangeByte: 1, AddByte: 1,
		AddByteRange: ByteRange{5, 12},
		Cancel:       2, FakeSpace: true,
	},
	{
		Name: "baidu", ServerName: "www.baidu.com", HTTPVersion: dfa.HTTP11,
		IndexHeader: false, EncodeSpace: true, TrimSpace: false, EncodeApostrophe: true,
		CounterMode: CounterCursor, CounterStart: 1, ChangeByte: 1, AddByte: 0,
		AddByteRange: ByteRange{0, 0},
		Pwd:          true, BDSvrTM: true,
	},
	{
		Name: "yahoo", ServerName: "search.yahoo.com", HTTPVersion: dfa.HTTP2,
		IndexHeader: true, EncodeSpace: true, TrimSpace: false, EncodeApostrophe: true,
		CounterMode: CounterFromN, CounterStart: 1, ChangeByte: 1, AddByte: 0,
		AddByteRange: ByteRange{0, 0},
		Stretch:      []int32{178},
	},
	{
		Name: "wikipedia", ServerName: "www.wikipedia.org", HTTPVersion: dfa.HTTP2,
		IndexHeader: true, EncodeSpace: true, TrimSpace: false, EncodeApostrophe: true,
		CounterMode: CounterFromN, CounterStart: 0, ChangeByte: 0, AddByte: 1,
		AddByteRange: ByteRange{1, 5},
		Stretch:      []int32{178},
	},
	{
		Name: "csdn", ServerName: "sp0.baidu.com", HTTPVersion: dfa.HTTP11,
		IndexHeader: false, EncodeSpace: true, TrimSpace: false, EncodeApostrophe: true,
		CounterMode: CounterNone, CounterStart: 0, ChangeByte: 4, AddByte: 0,
		AddByteRange: ByteRange{0, 0},
	},
	{
		Name: "twitch", ServerName: "gql.twitch.tv", HTTPVersion: dfa.HTTP11,
		IndexHeader: false, EncodeSpace: false, TrimSpace: false, EncodeApostrophe: false,
		CounterMode: CounterNone, CounterStart: 0, ChangeByte: 32, AddByte: 0,
		AddByteRange: ByteRange{0, 0},
	},
	{
		Name: "bing", ServerName: "www.bing.com", HTTPVersion: dfa.HTTP2,
		IndexHeader: false, EncodeSpace: true, TrimSpace: false, EncodeApostrophe: true,
		CounterMode: CounterCursor, CounterStart: 1, ChangeByte: 0, AddByte: 0,
		AddByteRange: ByteRange{0, 0},
		Threshold:    threshold(125),
	},
}

// Registry holds the built-in site profiles plus any loaded from a
// --registry override file (internal/config), keyed by site name.
type Registry struct {
	sites map[string]*Profile
}

// NewRegistry builds the default nine-site registry.
func NewRegistry() (*Registry, error) {
	r := &Registry{sites: make(map[string]*Profile, len(registryEntries))}
	for _, e := range registryEntries {
		p, err := Build(e)
		if err != nil {
			return nil, err
		}
		r.sites[e.Name] = p
	}
	return r, nil
}

// Add inserts or overrides one entry, used when merging a --registry
// JSON file over the built-in defaults.
func (r *Registry) Add(e Entry) error {
	p, err := Build(e)
	if err != nil {
		return err
	}
	r.sites[e.Name] = p
	return nil
}

// Lookup returns the named profile.
func (r *Registry) Lookup(name string) (*Profile, bool) {
	p, ok := r.sites[name]
	return p, ok
}

// DetectByServerName returns the first profile whose ServerName is a
// substring of the given ClientHello bytes, mirroring
// packets.py::_detect_website.
func (r *Registry) DetectByServerName(clientHello []byte) (*Profile, bool) {
	for _, e := range registryEntries {
		p := r.sites[e.Name]
		if p == nil {
			continue
		}
		if containsBytes(clientHello, []byte(p.ServerName)) {
			return p, true
		}
	}
	return nil, false
}

// Names lists every registered site name, for CLI usage/help text.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sites))
	for _, e := range registryEntries {
		if _, ok := r.sites[e.Name]; ok {
			names = append(names, e.Name)
		}
	}
	return names
}

func containsBytes(haystack, needle []byte) bool {
	if len(needle) == 0 {
		return true
	}
	if len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return true
		}
	}
	return false
}
