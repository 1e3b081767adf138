package dfa

// H1Pinyin is the HTTP/1.1 Pinyin automaton. A raw apostrophe costs 2
// bytes over the previous letter, a percent-encoded one costs 4.
//
// Ltr --1--> Ltr
// Ltr --2--> Apo      (only if !enc)
// Ltr --4--> ApoPct   (only if enc)
// Apo --1--> Ltr
// Apo --2--> Apo
// ApoPct --1--> Ltr
// ApoPct --4--> ApoPct
func H1Pinyin(delta int32, state State, enc bool) State {
	switch state {
	case Ltr:
		switch {
		case delta == 1:
			return Ltr
		case delta == 2 && !enc:
			return Apo
		case delta == 4 && enc:
			return ApoPct
		}
	case Apo:
		switch delta {
		case 1:
			return Ltr
		case 2:
			return Apo
		}
	case ApoPct:
		switch delta {
		case 1:
			return Ltr
		case 4:
			return ApoPct
		}
	}
	return Nul
}
