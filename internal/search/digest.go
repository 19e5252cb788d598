package search

import "strings"

// Enzyme cleaves protein sequences into peptides
type Enzyme struct {
	MissedCleavages int
	MinLen, MaxLen  int
	CleaveAt        string // residues at which to cleave, empty for no cleavage
	Restrict        byte   // residue that blocks cleavage when adjacent, 0 for none
	CTerminal       bool   // cleave after (true) or before the residue
}

// NewEnzyme converts the configured digestion rule
func NewEnzyme(c EnzymeConfig) Enzyme {
	e := Enzyme{
		MissedCleavages: c.MissedCleavages,
		MinLen:          c.MinLen,
		MaxLen:          c.MaxLen,
		CleaveAt:        c.CleaveAt,
		CTerminal:       true,
	}
	if c.Restrict != nil && len(*c.Restrict) > 0 {
		e.Restrict = (*c.Restrict)[0]
	}
	if c.CTerminal != nil {
		e.CTerminal = *c.CTerminal
	}
	return e
}

// sites returns the cleavage positions in seq, including both ends. A
// position p splits seq into seq[:p] and seq[p:].
func (e Enzyme) sites(seq string) []int {
	sites := []int{0}
	if e.CleaveAt != "" {
		for i := 0; i < len(seq); i++ {
			if !strings.ContainsRune(e.CleaveAt, rune(seq[i])) {
				continue
			}
			p := i
			neighbor := i - 1
			if e.CTerminal {
				p = i + 1
				neighbor = i + 1
			}
			if p <= 0 || p >= len(seq) {
				continue
			}
			if e.Restrict != 0 && neighbor >= 0 && neighbor < len(seq) && seq[neighbor] == e.Restrict {
				continue
			}
			sites = append(sites, p)
		}
	}
	return append(sites, len(seq))
}

// Digest returns the peptides of seq within the length limits, with up to
// MissedCleavages missed cleavage sites. Duplicates are possible.
func (e Enzyme) Digest(seq string) []string {
	sites := e.sites(seq)
	var peptides []string
	for i := 0; i < len(sites)-1; i++ {
		for j := i + 1; j < len(sites) && j <= i+1+e.MissedCleavages; j++ {
			n := sites[j] - sites[i]
			if n > e.MaxLen {
				break
			}
			if n >= e.MinLen {
				peptides = append(peptides, seq[sites[i]:sites[j]])
			}
		}
	}
	return peptides
}
