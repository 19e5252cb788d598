// Package search is a compact peptide database search: it digests a FASTA
// file, adds reversed decoys and scores MS2 spectra against the peptides
// whose mass fits the precursor.
package search

import (
	"sort"
	"strings"

	"github.com/524D/mzannotate/internal/mass"
	"github.com/524D/mzannotate/internal/peptide"
)

// Entry is one peptide of the database
type Entry struct {
	Peptide  *peptide.Peptide
	Mass     float64
	Proteins []string
	Decoy    bool
}

// Database holds the digested peptides ordered by mass. It is read-only
// after Build and safe for concurrent use.
type Database struct {
	entries           []Entry
	minIonIndex       int
	maxFragmentCharge int
}

// Build digests the proteins according to cfg
func Build(cfg Config, proteins []Protein) *Database {
	enzyme := NewEnzyme(cfg.Enzyme)

	// Unique sequences with the proteins they occur in
	targets := make(map[string][]string)
	var order []string
	for _, prot := range proteins {
		for _, seq := range enzyme.Digest(prot.Sequence) {
			if !validSequence(seq) {
				continue
			}
			if _, ok := targets[seq]; !ok {
				order = append(order, seq)
			}
			targets[seq] = appendUnique(targets[seq], prot.Accession)
		}
	}

	db := &Database{minIonIndex: cfg.MinIonIndex, maxFragmentCharge: cfg.MaxFragmentCharge}
	for _, seq := range order {
		p := newModified(seq, cfg.StaticMods)
		m := p.Mass()
		if m < cfg.PeptideMinMass || m > cfg.PeptideMaxMass {
			continue
		}
		db.entries = append(db.entries, Entry{Peptide: p, Mass: m, Proteins: targets[seq]})

		if !cfg.GenerateDecoys {
			continue
		}
		d := p.Reversed()
		if _, ok := targets[d.Sequence()]; ok {
			// decoy collides with a target peptide
			continue
		}
		decoyProteins := make([]string, len(targets[seq]))
		for i, acc := range targets[seq] {
			decoyProteins[i] = cfg.DecoyTag + acc
		}
		db.entries = append(db.entries, Entry{Peptide: d, Mass: d.Mass(), Proteins: decoyProteins, Decoy: true})
	}

	sort.SliceStable(db.entries, func(i, j int) bool {
		if db.entries[i].Mass != db.entries[j].Mass {
			return db.entries[i].Mass < db.entries[j].Mass
		}
		return db.entries[i].Peptide.Sequence() < db.entries[j].Peptide.Sequence()
	})
	return db
}

// Len returns the number of peptides, decoys included
func (db *Database) Len() int {
	return len(db.entries)
}

// Candidates returns the entries with mass in [lo, hi]. The result shares
// memory with the database and must not be modified.
func (db *Database) Candidates(lo, hi float64) []Entry {
	i1 := sort.Search(len(db.entries), func(i int) bool { return db.entries[i].Mass >= lo })
	i2 := sort.Search(len(db.entries), func(i int) bool { return db.entries[i].Mass > hi })
	if i2 < i1 {
		return nil
	}
	return db.entries[i1:i2]
}

func newModified(seq string, mods map[string]float64) *peptide.Peptide {
	p, _ := peptide.New(seq) // validated by the caller
	for k, delta := range mods {
		switch k {
		case "^":
			p.SetNtermMod(delta)
		default:
			p.StaticMod(k[0], delta)
		}
	}
	return p
}

func validSequence(seq string) bool {
	for i := 0; i < len(seq); i++ {
		if !mass.ValidResidue(seq[i]) {
			return false
		}
	}
	return seq != ""
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// proteinList joins accessions the way they are reported in features
func proteinList(proteins []string) string {
	return strings.Join(proteins, ";")
}
