package dfa

// H2Pinyin is the HTTP/2 Pinyin automaton. Apostrophe and its
// percent-encoded form are conflated into ApoOrApoPct because their
// Huffman-coded widths (2 or 3 bytes, depending on adjacent bit
// padding) coincide at this resolution.
//
// Ltr --1--> Ltr
// Ltr --0--> Ltr0
// Ltr --{2,3}--> ApoOrApoPct
// Ltr0 --1--> Ltr
// Ltr0 --{2,3}--> ApoOrApoPct
// ApoOrApoPct --1--> Ltr
// ApoOrApoPct --0--> Ltr0
// ApoOrApoPct --{2,3}--> ApoOrApoPct
func H2Pinyin(delta int32, state State, enc bool) State {
	switch state {
	case Ltr:
		switch {
		case delta == 1:
			return Ltr
		case delta == 0:
			return Ltr0
		case delta == 2 || delta == 3:
			return ApoOrApoPct
		}
	case Ltr0:
		switch {
		case delta == 1:
			return Ltr
		case delta == 2 || delta == 3:
			return ApoOrApoPct
		}
	case ApoOrApoPct:
		switch {
		case delta == 1:
			return Ltr
		case delta == 0:
			return Ltr0
		case delta == 2 || delta == 3:
			return ApoOrApoPct
		}
	}
	return Nul
}
