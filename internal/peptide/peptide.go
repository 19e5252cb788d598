// Package peptide models a peptide sequence with static modifications and
// generates its theoretical b and y fragment ions.
package peptide

import (
	"errors"
	"fmt"

	"github.com/524D/mzannotate/internal/mass"
)

// ErrInvalidResidue is matched by errors returned from New when the sequence
// contains a letter that is not a supported amino acid.
var ErrInvalidResidue = errors.New("invalid amino acid")

// InvalidResidueError describes the offending input
type InvalidResidueError struct {
	Sequence string
	Residue  byte // 0 for an empty sequence
	Pos      int
}

func (e *InvalidResidueError) Error() string {
	if e.Sequence == "" {
		return "invalid amino acid: empty sequence"
	}
	return fmt.Sprintf("invalid amino acid %q at position %d in %q", e.Residue, e.Pos+1, e.Sequence)
}

// Is makes errors.Is(err, ErrInvalidResidue) true
func (e *InvalidResidueError) Is(target error) bool {
	return target == ErrInvalidResidue
}

// Peptide is an amino acid sequence with optional static modifications.
// Modifications must be applied before ions are generated; after that the
// peptide is treated as immutable.
type Peptide struct {
	sequence []byte
	mods     map[byte]float64 // residue -> mass delta
	sites    map[int]float64  // position -> mass delta
	nterm    *float64
}

// New validates sequence and returns an unmodified peptide
func New(sequence string) (*Peptide, error) {
	if sequence == "" {
		return nil, &InvalidResidueError{}
	}
	for i := 0; i < len(sequence); i++ {
		if !mass.ValidResidue(sequence[i]) {
			return nil, &InvalidResidueError{Sequence: sequence, Residue: sequence[i], Pos: i}
		}
	}
	return &Peptide{
		sequence: []byte(sequence),
		mods:     make(map[byte]float64),
	}, nil
}

// SetNtermMod sets the N-terminal mass delta, replacing any earlier value
func (p *Peptide) SetNtermMod(delta float64) {
	p.nterm = &delta
}

// StaticMod sets the mass delta applied to every occurrence of residue.
// A later call for the same residue replaces the earlier delta.
func (p *Peptide) StaticMod(residue byte, delta float64) {
	p.mods[residue] = delta
}

// SiteMod adds delta to the residue at 0-based position pos only. Deltas
// on the same position accumulate.
func (p *Peptide) SiteMod(pos int, delta float64) error {
	if pos < 0 || pos >= len(p.sequence) {
		return fmt.Errorf("modification position %d outside %q", pos, p.sequence)
	}
	if p.sites == nil {
		p.sites = make(map[int]float64)
	}
	p.sites[pos] += delta
	return nil
}

// Sequence returns the unmodified sequence
func (p *Peptide) Sequence() string {
	return string(p.sequence)
}

// Len returns the number of residues
func (p *Peptide) Len() int {
	return len(p.sequence)
}

// NtermMod returns the N-terminal delta, or 0 if none was set
func (p *Peptide) NtermMod() float64 {
	if p.nterm == nil {
		return 0
	}
	return *p.nterm
}

// residueMass returns the mass of residue i including its static modification
func (p *Peptide) residueMass(i int) float64 {
	aa := p.sequence[i]
	m, _ := mass.Residue(aa) // validated in New
	return m + p.mods[aa] + p.sites[i]
}

// Mass returns the neutral monoisotopic mass of the peptide
func (p *Peptide) Mass() float64 {
	m := mass.H2O + p.NtermMod()
	for i := range p.sequence {
		m += p.residueMass(i)
	}
	return m
}

// Reversed returns a decoy copy of p with all residues except the
// C-terminal one reversed. Modifications are carried over.
func (p *Peptide) Reversed() *Peptide {
	n := len(p.sequence)
	seq := make([]byte, n)
	for i := 0; i < n-1; i++ {
		seq[i] = p.sequence[n-2-i]
	}
	seq[n-1] = p.sequence[n-1]
	mods := make(map[byte]float64, len(p.mods))
	for k, v := range p.mods {
		mods[k] = v
	}
	d := &Peptide{sequence: seq, mods: mods}
	for pos, delta := range p.sites {
		if pos < n-1 {
			pos = n - 2 - pos
		}
		d.SiteMod(pos, delta)
	}
	if p.nterm != nil {
		d.SetNtermMod(*p.nterm)
	}
	return d
}
