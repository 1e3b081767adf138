package dfa

// H1English is the HTTP/1.1 English automaton. Deltas are raw byte
// counts; a plain letter costs 1 byte, a percent-encoded space costs 3
// (the %20 literal replaces a single raw space byte that never
// appears bare in this automaton's alphabet).
//
// Ltr --1--> Ltr
// Ltr --3--> SpaPct   (only if enc)
// SpaPct --1--> Ltr
func H1English(delta int32, state State, enc bool) State {
	switch state {
	case Ltr:
		switch {
		case delta == 1:
			return Ltr
		case delta == 3 && enc:
			return SpaPct
		}
	case SpaPct:
		if delta == 1 {
			return Ltr
		}
	}
	return Nul
}
