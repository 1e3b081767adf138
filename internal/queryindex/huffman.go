package queryindex

import (
	"strconv"

	"golang.org/x/net/http2/hpack"

	"qris/internal/siteprofile"
)

// initByteVariants are the eight possible bit-alignments a query
// string can land on inside the HPACK-compressed header value,
// depending on how many bits the preceding header bytes leave
// unconsumed in the current octet (spec §4.6). Each is a 3-byte
// Huffman-friendly prefix engineered to land the query at a distinct
// starting bit offset, mirroring the original's init_bytes table.
var initByteVariants = [8]string{"AA0", "AAA", "AAB", "AAX", "XX0", "XXA", "XXB", "XXX"}

// ComputePatterns returns, for each of the eight bit-alignment
// variants, the Huffman-compressed size increase at every accepted
// keystroke position of query. ctStart is the counter parameter's
// starting value already resolved for this request (profile.Effective
// applied by the caller) since Profile itself carries no per-request
// state.
func ComputePatterns(query string, profile *siteprofile.Profile, ctStart int32) [8][]int32 {
	var sequences [8][]int
	var queryBytes []byte
	ct := ctStart

	for _, ch := range query {
		switch {
		case ch == '\'' && profile.EncodeApostrophe:
			queryBytes = append(queryBytes, "%27"...)
		case ch == ' ' && profile.EncodeSpace:
			queryBytes = append(queryBytes, "%20"...)
		default:
			queryBytes = append(queryBytes, string(ch)...)
		}

		if ch == '\'' {
			if profile.CounterMode == siteprofile.CounterCursor {
				ct++
			}
			continue
		}
		if ch == ' ' && profile.TrimSpace {
			if profile.CounterMode == siteprofile.CounterCursor {
				ct++
			}
			continue
		}

		encodeBytes := queryBytes
		if profile.CounterMode != siteprofile.CounterNone {
			encodeBytes = append(append([]byte(nil), queryBytes...), strconv.Itoa(int(ct))...)
		}

		for i, prefix := range initByteVariants {
			full := append([]byte(prefix), encodeBytes...)
			sequences[i] = append(sequences[i], int(hpack.HuffmanEncodeLength(string(full))))
		}
		ct++
	}

	var out [8][]int32
	for i := range sequences {
		out[i] = diffInts(sequences[i])
	}
	return out
}

// diffInts returns the pairwise differences of xs (length len(xs)-1),
// matching numpy.diff — the first absolute size is not itself part of
// a pattern, only the increase from one keystroke to the next is.
func diffInts(xs []int) []int32 {
	if len(xs) < 2 {
		return nil
	}
	out := make([]int32, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out[i-1] = int32(xs[i] - xs[i-1])
	}
	return out
}
