package peptide

import (
	"fmt"
)

// Kind of fragment ion series
type Kind int

const (
	// B ions carry the N-terminus
	B Kind = iota
	// Y ions carry the C-terminus
	Y
)

func (k Kind) String() string {
	switch k {
	case B:
		return "B"
	case Y:
		return "Y"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText writes "B" or "Y"
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case B, Y:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("invalid ion kind %d", int(k))
}

// UnmarshalText accepts "B" or "Y" in either case
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "B", "b":
		*k = B
	case "Y", "y":
		*k = Y
	default:
		return fmt.Errorf("invalid ion kind %q", text)
	}
	return nil
}

// Position converts the 0-based enumeration index of an ion into the
// conventional ion number: b(i+1) and y(len-i).
func (k Kind) Position(idx, peptideLen int) int {
	if k == Y {
		return peptideLen - idx
	}
	return idx + 1
}

// Ion is a theoretical fragment with its neutral monoisotopic mass
type Ion struct {
	Kind Kind
	Mass float64
}

// IonSeries iterates over the fragments of one kind, one per cleavage site.
// It is restartable with Reset.
type IonSeries struct {
	peptide *Peptide
	kind    Kind
	idx     int
	prefix  float64 // N-terminal prefix mass up to and including idx
	total   float64
}

// NewIonSeries returns an iterator over the b or y ions of p
func NewIonSeries(p *Peptide, kind Kind) *IonSeries {
	s := &IonSeries{peptide: p, kind: kind}
	s.Reset()
	return s
}

// Reset rewinds the iterator to the first ion
func (s *IonSeries) Reset() {
	s.idx = 0
	s.prefix = s.peptide.NtermMod()
	s.total = s.peptide.Mass()
}

// Next returns the enumeration index and ion of the next cleavage site.
// ok is false once all len-1 ions have been produced.
func (s *IonSeries) Next() (idx int, ion Ion, ok bool) {
	if s.idx >= s.peptide.Len()-1 {
		return 0, Ion{}, false
	}
	idx = s.idx
	s.prefix += s.peptide.residueMass(idx)
	s.idx++

	m := s.prefix
	if s.kind == Y {
		m = s.total - s.prefix
	}
	return idx, Ion{Kind: s.kind, Mass: m}, true
}

// Ions returns all ions of the series in enumeration order
func (s *IonSeries) Ions() []Ion {
	s.Reset()
	ions := make([]Ion, 0, s.peptide.Len()-1)
	for {
		_, ion, ok := s.Next()
		if !ok {
			break
		}
		ions = append(ions, ion)
	}
	return ions
}
