package dfa

// H2English is the HTTP/2 English automaton. Huffman coding means a
// letter sometimes costs zero additional bytes (Ltr0) when its code
// fits in bits already reserved by the previous byte.
//
// Ltr --1--> Ltr
// Ltr --0--> Ltr0
// Ltr --2--> SpaPct   (only if enc)
// Ltr0 --1--> Ltr
// Ltr0 --2--> SpaPct  (only if enc)
// SpaPct --1--> Ltr
// SpaPct --0--> Ltr0
func H2English(delta int32, state State, enc bool) State {
	switch state {
	case Ltr:
		switch {
		case delta == 1:
			return Ltr
		case delta == 0:
			return Ltr0
		case delta == 2 && enc:
			return SpaPct
		}
	case Ltr0:
		switch {
		case delta == 1:
			return Ltr
		case delta == 2 && enc:
			return SpaPct
		}
	case SpaPct:
		switch delta {
		case 1:
			return Ltr
		case 0:
			return Ltr0
		}
	}
	return Nul
}
