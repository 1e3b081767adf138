package siteprofile

import (
	"strings"

	"qris/internal/dfa"
)

// Canonical per-automaton delta constants, ported from DFA.py's enum
// values. Naming follows <version><lang><from><to>.
const (
	h1enLL  int32 = 1
	h1enLDp int32 = 3
	h1enDpL int32 = 1

	h1zhLL   int32 = 1
	h1zhLD   int32 = 2
	h1zhLDp  int32 = 4
	h1zhDpL  int32 = 1
	h1zhDpDp int32 = 4

	h2enLL   int32 = 1
	h2enLL0  int32 = 0
	h2enLDp  int32 = 2
	h2enL0L  int32 = 1
	h2enDpL  int32 = 1
	h2enDpL0 int32 = 0

	h2zhLL    int32 = 1
	h2zhLL0   int32 = 0
	h2zhLDxLo int32 = 2
	h2zhLDxHi int32 = 3
	h2zhL0L   int32 = 1
)

// IsDelimState reports whether a state is one of the delimiter states
// (any space or apostrophe variant), mirroring Python's `'Apo' in
// state or 'Spa' in state` substring checks against the state's name.
func IsDelimState(s dfa.State) bool {
	name := s.String()
	return strings.Contains(name, "Apo") || strings.Contains(name, "Spa")
}

// StripPwd removes Baidu's "&pwd=" past-query parameter contribution
// from a raw delta before the DFA sees it. state is the previously
// accepted state (the transition this step is leaving from).
func (p *Profile) StripPwd(dsize int32, state dfa.State, ct int32) int32 {
	if !p.Pwd {
		return dsize
	}
	if ct == 1 {
		dsize -= 5
	}
	switch state {
	case dfa.Ltr:
		dsize -= h1enLL
	case dfa.SpaPct:
		dsize -= h1enLDp
	case dfa.Apo:
		dsize -= h1zhLD
	case dfa.ApoPct:
		dsize -= h1zhLDp
	}
	return dsize
}

// StripAB strips a dummy byte that a site injects at specific
// keystroke positions (add_byte_range), setting ab=1 the first time
// it is absorbed; idx is the position counting from index_header's
// offset already applied by the caller.
func (p *Profile) StripAB(dsize int32, state dfa.State, idx int, ab int, zh, enc bool) (int32, dfa.State, int) {
	if ab == 1 {
		return dsize, state, 0
	}
	if p.HTTPVersion == dfa.HTTP11 {
		return p.stripH1AB(dsize, state, idx, ab, zh, enc)
	}
	return p.stripH2AB(dsize, state, idx, ab, zh, enc)
}

func (p *Profile) stripH1AB(dsize int32, state dfa.State, idx int, ab int, zh, enc bool) (int32, dfa.State, int) {
	if p.AddByte == 1 && p.AddByteRange.Contains(idx) {
		switch {
		case dsize == h1enLL+1 && enc:
			dsize, ab = h1enLL, 1
		case dsize == h1enLDp+1 && !zh && enc:
			dsize, ab = h1enLDp, 1
		case dsize == h1zhLD+1 && zh && !enc:
			dsize, ab = h1zhLD, 1
		case dsize == h1zhLDp+1 && zh && !enc:
			dsize, ab = h1zhLDp, 1
		}
	}
	return dsize, state, ab
}

func (p *Profile) stripH2AB(dsize int32, state dfa.State, idx int, ab int, zh, enc bool) (int32, dfa.State, int) {
	if p.AddByte >= 1 && p.AddByte <= 2 {
		if p.AddByteRange.Contains(idx) {
			switch {
			case (dsize == h2zhLDxLo+2 || dsize == h2zhLDxHi+2) && zh:
				dsize, ab = h2zhLDxHi, 1
			case (dsize == h2enLDp+1 || dsize == h2enLDp+2) && !zh && enc:
				dsize, ab = h2enLDp, 1
			}
		}
		if idx-1 >= p.AddByteRange.Lo && idx-1 < p.AddByteRange.Hi {
			if dsize == h2enLDp && state == dfa.SpaPct {
				state = dfa.Ltr
			}
		}
	}
	return dsize, state, ab
}

// AdjustCT accounts for the counter parameter's textual or
// Huffman-encoded width changing as it increases.
func (p *Profile) AdjustCT(dsize int32, state dfa.State, ct int32, zh, enc bool) (int32, dfa.State) {
	switch p.CounterMode {
	case CounterCursor:
		if p.HTTPVersion == dfa.HTTP11 {
			return p.adjustH1CP(dsize, state, ct, zh, enc)
		}
		return p.adjustH2CP(dsize, state, ct, zh, enc)
	case CounterFromN:
		if p.HTTPVersion == dfa.HTTP11 {
			return p.adjustH1CN(dsize, state, ct, zh, enc)
		}
		return p.adjustH2CN(dsize, state, ct, zh, enc)
	}
	return dsize, state
}

func (p *Profile) adjustH1CP(dsize int32, state dfa.State, ct int32, zh, enc bool) (int32, dfa.State) {
	switch ct {
	case 8:
		if dsize == h1zhLD+1 && zh && !enc {
			dsize--
		}
		if dsize == h1zhLDp+1 && zh && enc {
			dsize--
		}
	case 9:
		if dsize == h1enLL+1 {
			dsize--
		}
		if dsize == h1enLDp+1 && !zh && enc {
			dsize--
		}
		if dsize == h1zhLD+1 && zh && !enc {
			dsize--
		}
		if dsize == h1zhLDp+1 && zh && enc {
			dsize--
		}
	}
	return dsize, state
}

func (p *Profile) adjustH2CP(dsize int32, state dfa.State, ct int32, zh, enc bool) (int32, dfa.State) {
	switch ct % 10 {
	case 1:
		if dsize == h2zhLDxHi+1 && zh && enc {
			dsize--
		}
	case 2:
		if dsize == h2enLDp+1 && !zh && enc {
			dsize--
		}
		if dsize == h2zhLDxHi+1 && zh && enc {
			dsize--
		}
	}
	switch ct {
	case 8:
		if dsize == h2zhLDxHi+1 && zh && enc {
			dsize--
		}
	case 9:
		if dsize == h2zhLL+1 && zh && enc {
			dsize--
		}
		if dsize == h2enLDp+1 && !zh && enc {
			dsize--
		}
		if dsize == h2enDpL+1 && state == dfa.SpaPct && enc {
			dsize--
		}
		if dsize == h2zhLDxHi+1 && zh && enc {
			dsize--
		}
	case 10:
		if dsize == h2enLDp && state == dfa.SpaPct && enc {
			state = dfa.Ltr
		}
	}
	return dsize, state
}

func (p *Profile) adjustH1CN(dsize int32, state dfa.State, ct int32, zh, enc bool) (int32, dfa.State) {
	if ct == 9 {
		if dsize == h1enLL+1 {
			dsize--
		}
		if dsize == h1enLDp+1 && !zh && enc {
			dsize--
		}
		if dsize == h1zhLD+1 && zh && !enc {
			dsize--
		}
		if dsize == h1zhLDp+1 && zh && enc {
			dsize--
		}
	}
	return dsize, state
}

func (p *Profile) adjustH2CN(dsize int32, state dfa.State, ct int32, zh, enc bool) (int32, dfa.State) {
	if ct%10 == 2 {
		if dsize == h2enLDp+1 && !zh && enc {
			dsize--
		}
		if dsize == h2zhLDxHi+1 && zh && enc {
			dsize--
		}
	}
	switch ct {
	case 9:
		if dsize == h2zhLL+1 && zh && enc {
			dsize--
		}
		if dsize == h2enLDp+1 && !zh && enc {
			dsize--
		}
		if dsize == h2enDpL+1 && state == dfa.SpaPct && enc {
			dsize--
		}
		if dsize == h2zhLDxHi+1 && zh && enc {
			dsize--
		}
	case 10:
		if dsize == h2enLDp && state == dfa.SpaPct && enc {
			state = dfa.Ltr
		}
	}
	return dsize, state
}

// CheckCT flags the ambiguous Huffman-boundary counter collisions at
// ct in {10,20,40,50} as delimiter conflicts for token delimiting.
func (p *Profile) CheckCT(dsize int32, state dfa.State, ct int32) bool {
	if p.HTTPVersion != dfa.HTTP2 {
		return false
	}
	if IsDelimState(state) {
		return dsize == h2enLL+1 && ct < 20
	}
	return dsize == h2enLL && ct >= 20
}

// CheckAB flags the ambiguous added-byte collisions for token
// delimiting.
func (p *Profile) CheckAB(dsize int32, state dfa.State) bool {
	if p.HTTPVersion == dfa.HTTP11 {
		if p.AddByte == 1 && IsDelimState(state) {
			return dsize == h1enLL+1
		}
		return false
	}
	if p.AddByte >= 1 && p.AddByte <= 2 && IsDelimState(state) {
		switch p.AddByte {
		case 1:
			return dsize == h2enLL+1
		case 2:
			return dsize == h2enLL+1 || dsize == h2enLL+2
		}
	}
	return false
}

// AdjustCB collapses a site's HPACK byte-length jitter onto the
// canonical DFA-accepted deltas.
func (p *Profile) AdjustCB(dsize int32, state dfa.State, zh bool) int32 {
	if p.HTTPVersion != dfa.HTTP2 || p.ChangeByte <= 0 {
		return dsize
	}
	if p.ChangeByte > 1 {
		if dsize == h2enLL0-1 {
			dsize = h2enLL0
		}
		if dsize == h2enLL0 && state == dfa.Ltr0 {
			dsize = h2enLL
		}
	}
	if dsize == h2enLDp+1 && !zh {
		dsize = h2enLDp
	}
	if dsize == h2zhLDxHi+1 && zh {
		dsize = h2zhLDxHi
	}
	return dsize
}

// CheckCB flags the ambiguous changing-byte collision for token
// delimiting.
func (p *Profile) CheckCB(dsize int32) bool {
	return p.HTTPVersion == dfa.HTTP2 && p.ChangeByte > 1 && dsize == h2enLL+1
}

// CheckGS rescues a step the DFA rejected by testing whether Google's
// gs_mss parameter just appeared or disappeared. lsize is the chosen
// size sequence so far (LDL[j]['size'] in the original).
func (p *Profile) CheckGS(dsize int32, lsize []int32, gsmss int32) (dfa.State, int32) {
	const gsSize = 6
	inAccept := func(v int32) bool { return v >= h2enLL0-1 && v <= h2zhLDxHi+2 }

	next := dfa.Nul
	if len(lsize) > 1 {
		inc := lsize[len(lsize)-1] - lsize[0]
		if gsmss == 0 {
			if inAccept(dsize - inc - gsSize) {
				next = dfa.Ltr
				gsmss = inc
			}
		} else {
			if inAccept(dsize + gsmss + gsSize) {
				next = dfa.Ltr
				gsmss = 0
			}
		}
	}
	return next, gsmss
}

// bdFloatSizes are Baidu cookie-size oscillations tolerated after the
// one-time cookie addition has been recorded.
var bdFloatSizes = [8]int32{5, -5, 1, -1, 6, -6, 4, -4}

// CheckBD rescues a step by testing Baidu's one-time BDSVRTM/PSINO
// cookie addition (at the 3rd keystroke) or its later small
// oscillations. transfer is the DFA family member bound for this run
// (English or Pinyin, per the request language).
func (p *Profile) CheckBD(dsize int32, state dfa.State, ct int32, coochg int32, idx int, char, zh, enc bool, transfer dfa.TransferFunc) (dfa.State, int32) {
	const (
		bdsvrtm   int32 = 12
		delPer    int32 = 10
		bdCKSam   int32 = 13
		psino     int32 = 9
		floatHPS  int32 = 5
		floatBDSV int32 = 1
	)
	addFull := bdsvrtm + delPer + bdCKSam + psino
	inAddRange := func(v int32) bool { return v >= bdsvrtm && v < addFull+40 }
	_ = floatHPS
	_ = floatBDSV

	next := dfa.Nul
	dsize = p.StripPwd(dsize, state, ct)

	if coochg == 0 {
		if idx >= 2 && inAddRange(dsize) {
			switch {
			case char:
				next = dfa.Ltr
			case !zh && enc:
				next = dfa.SpaPct
			case zh && !enc:
				next = dfa.Apo
			case zh && enc:
				next = dfa.ApoPct
			}
			coochg = dsize
		}
		return next, coochg
	}

	for _, change := range bdFloatSizes {
		adjSize, adjState := p.AdjustCT(dsize-change, state, ct, zh, enc)
		next = transfer(adjSize, adjState, enc)
		if next != dfa.Nul {
			coochg += change
			break
		}
	}
	return next, coochg
}
