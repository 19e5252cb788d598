package search

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/524D/mzannotate/internal/mass"
	"github.com/524D/mzannotate/internal/peptide"
	"github.com/524D/mzannotate/internal/spectrum"
)

const testFasta = `;comment line
>sp|P1|TEST1 first protein
MKPEPTIDEK
SAMPLERAGGLLK

>sp|P2|TEST2 second protein
aggllkxxxr
`

func TestReadFasta(t *testing.T) {
	proteins, err := ReadFasta(strings.NewReader(testFasta))
	if err != nil {
		t.Fatalf("ReadFasta: %v", err)
	}
	want := []Protein{
		{Accession: "sp|P1|TEST1", Sequence: "MKPEPTIDEKSAMPLERAGGLLK"},
		{Accession: "sp|P2|TEST2", Sequence: "AGGLLKXXXR"},
	}
	if diff := cmp.Diff(want, proteins); diff != "" {
		t.Errorf("ReadFasta mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadFasta(strings.NewReader("PEPTIDE\n>p\nK\n")); !errors.Is(err, ErrFasta) {
		t.Errorf("sequence before header: error %v, should be ErrFasta", err)
	}
	if _, err := ReadFasta(strings.NewReader(">\nK\n")); !errors.Is(err, ErrFasta) {
		t.Errorf("empty header: error %v, should be ErrFasta", err)
	}
}

func TestDigest(t *testing.T) {
	trypsin := NewEnzyme(DefaultConfig().Enzyme)
	got := trypsin.Digest("MKPEPTIDEKSAMPLERAGGLLK")
	want := []string{
		"MKPEPTIDEK", "MKPEPTIDEKSAMPLER", "MKPEPTIDEKSAMPLERAGGLLK",
		"SAMPLER", "SAMPLERAGGLLK",
		"AGGLLK",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tryptic digest mismatch (-want +got):\n%s", diff)
	}

	aspN := Enzyme{MinLen: 1, MaxLen: 50, CleaveAt: "D"}
	if diff := cmp.Diff([]string{"AAA", "DKKK", "DGG"}, aspN.Digest("AAADKKKDGG")); diff != "" {
		t.Errorf("N-terminal digest mismatch (-want +got):\n%s", diff)
	}

	none := Enzyme{MinLen: 1, MaxLen: 50}
	if diff := cmp.Diff([]string{"PEPTIDEK"}, none.Digest("PEPTIDEK")); diff != "" {
		t.Errorf("no cleavage mismatch (-want +got):\n%s", diff)
	}

	short := Enzyme{MinLen: 7, MaxLen: 10, CleaveAt: "KR", Restrict: 'P', CTerminal: true, MissedCleavages: 1}
	if diff := cmp.Diff([]string{"MKPEPTIDEK", "SAMPLER"}, short.Digest("MKPEPTIDEKSAMPLERAGGLLK")); diff != "" {
		t.Errorf("length limited digest mismatch (-want +got):\n%s", diff)
	}
}

func testDatabase(t *testing.T, decoys bool) *Database {
	t.Helper()
	proteins, err := ReadFasta(strings.NewReader(testFasta))
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Fasta = "test.fasta"
	cfg.GenerateDecoys = decoys
	return Build(cfg, proteins)
}

func TestBuild(t *testing.T) {
	db := testDatabase(t, false)
	var seqs []string
	for _, e := range db.entries {
		seqs = append(seqs, e.Peptide.Sequence())
		if e.Mass < 500 || e.Mass > 5000 {
			t.Errorf("%s mass %f outside the configured range", e.Peptide.Sequence(), e.Mass)
		}
	}
	for i := 1; i < len(db.entries); i++ {
		if db.entries[i].Mass < db.entries[i-1].Mass {
			t.Fatalf("entries not ordered by mass: %v", seqs)
		}
	}
	// peptides with X are dropped, AGGLLK occurs in both proteins
	found := 0
	for _, e := range db.entries {
		switch seq := e.Peptide.Sequence(); {
		case strings.Contains(seq, "X"):
			t.Errorf("unexpected peptide %s", seq)
		case seq == "SAMPLER":
			found++
			if diff := cmp.Diff([]string{"sp|P1|TEST1"}, e.Proteins); diff != "" {
				t.Errorf("SAMPLER proteins (-want +got):\n%s", diff)
			}
		case seq == "AGGLLK":
			found++
			if diff := cmp.Diff([]string{"sp|P1|TEST1", "sp|P2|TEST2"}, e.Proteins); diff != "" {
				t.Errorf("AGGLLK proteins (-want +got):\n%s", diff)
			}
		}
	}
	if found != 2 {
		t.Errorf("SAMPLER or AGGLLK missing from %v", seqs)
	}

	withDecoys := testDatabase(t, true)
	if withDecoys.Len() != 2*db.Len() {
		t.Errorf("got %d entries with decoys, want %d", withDecoys.Len(), 2*db.Len())
	}
	decoy := false
	for _, e := range withDecoys.entries {
		if e.Decoy && e.Peptide.Sequence() == "ELPMASR" {
			decoy = true
			if e.Proteins[0] != "rev_sp|P1|TEST1" {
				t.Errorf("decoy protein %s", e.Proteins[0])
			}
		}
	}
	if !decoy {
		t.Errorf("decoy of SAMPLER missing")
	}
}

func TestCandidates(t *testing.T) {
	db := testDatabase(t, true)
	p, _ := peptide.New("SAMPLER")
	lo, hi := mass.PPMTolerance(-10, 10).Bounds(p.Mass())
	c := db.Candidates(lo, hi)
	if len(c) != 2 {
		t.Fatalf("got %d candidates, want SAMPLER and its decoy", len(c))
	}
	if len(db.Candidates(0, 1)) != 0 {
		t.Errorf("candidates below the lightest peptide")
	}
}

// spectrumFor returns a 2+ spectrum containing every singly charged b and y
// ion of seq.
func spectrumFor(t *testing.T, seq string) *spectrum.ProcessedSpectrum {
	t.Helper()
	p, err := peptide.New(seq)
	if err != nil {
		t.Fatal(err)
	}
	var peaks []spectrum.Peak
	for _, kind := range []peptide.Kind{peptide.B, peptide.Y} {
		for _, ion := range peptide.NewIonSeries(p, kind).Ions() {
			peaks = append(peaks, spectrum.Peak{Mass: ion.Mass, Intensity: 100})
		}
	}
	return &spectrum.ProcessedSpectrum{
		Level:         2,
		ScanID:        17,
		RetentionTime: 31.2,
		Precursors:    []spectrum.Precursor{{Mz: (p.Mass() + 2*mass.Proton) / 2, Charge: 2}},
		Peaks:         peaks,
	}
}

func TestScore(t *testing.T) {
	db := testDatabase(t, true)
	q := Query{
		PrecursorTolerance: mass.PPMTolerance(-10, 10),
		FragmentTolerance:  mass.PPMTolerance(-10, 10),
		ReportPSMs:         5,
	}
	features := db.Score(spectrumFor(t, "SAMPLER"), q)
	if len(features) == 0 {
		t.Fatal("no features")
	}
	if len(features) > 2 {
		t.Errorf("got %d features, only 2 candidates exist", len(features))
	}
	best := features[0]
	if best.Peptide != "SAMPLER" || best.Label != 1 || best.Rank != 1 || best.Charge != 2 {
		t.Errorf("best feature %+v", best)
	}
	if best.ScanNr != 17 || best.RT != 31.2 || best.QValue != 1 || best.SpecID != "17.1" {
		t.Errorf("feature metadata %+v", best)
	}
	// b2..b6 and y2..y6 match
	if best.MatchedPeaks != 10 || best.LongestB != 5 || best.LongestY != 5 {
		t.Errorf("matched %d, longest b %d, longest y %d", best.MatchedPeaks, best.LongestB, best.LongestY)
	}
	if best.Hyperscore <= 0 || best.DeltaHyperscore <= 0 {
		t.Errorf("hyperscore %f, delta %f", best.Hyperscore, best.DeltaHyperscore)
	}
	if best.Poisson >= 0 {
		t.Errorf("poisson %f, should be negative", best.Poisson)
	}
	if best.DeltaMass > 1e-3 || best.DeltaMass < -1e-3 {
		t.Errorf("delta mass %f ppm", best.DeltaMass)
	}
	if len(features) == 2 && features[1].Hyperscore > best.Hyperscore {
		t.Errorf("features not ordered by hyperscore")
	}

	q.ReportPSMs = 1
	if got := db.Score(spectrumFor(t, "SAMPLER"), q); len(got) != 1 {
		t.Errorf("ReportPSMs 1: got %d features", len(got))
	}
}

func TestScoreChimera(t *testing.T) {
	db := testDatabase(t, true)
	q := Query{
		PrecursorTolerance: mass.PPMTolerance(-10, 10),
		FragmentTolerance:  mass.PPMTolerance(-10, 10),
		ReportPSMs:         1,
		Chimera:            true,
	}
	features := db.Score(spectrumFor(t, "SAMPLER"), q)
	if len(features) == 0 || len(features) > 2 {
		t.Fatalf("got %d features", len(features))
	}
	for _, f := range features[1:] {
		if f.Peptide == features[0].Peptide {
			t.Errorf("chimeric pass reported the best peptide again")
		}
		if f.Rank != 2 {
			t.Errorf("chimeric feature rank %d", f.Rank)
		}
	}
}

func TestScoreNoCandidates(t *testing.T) {
	db := testDatabase(t, true)
	spec := spectrumFor(t, "SAMPLER")
	spec.Precursors[0].Mz = 2400
	got := db.Score(spec, Query{
		PrecursorTolerance: mass.PPMTolerance(-10, 10),
		FragmentTolerance:  mass.PPMTolerance(-10, 10),
		ReportPSMs:         1,
	})
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
}

func TestParseConfig(t *testing.T) {
	t.Setenv(fastaPathEnv, "")
	doc := `{
  "fasta": "human.fasta",
  "enzyme": {"missed_cleavages": 1, "restrict": null},
  "static_mods": {"^": 229.162932, "K": 229.162932},
  "generate_decoys": false
}`
	cfg, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Fasta != "human.fasta" || cfg.Enzyme.MissedCleavages != 1 || cfg.Enzyme.Restrict != nil {
		t.Errorf("parsed values not applied: %+v", cfg)
	}
	if cfg.Enzyme.MinLen != 5 || cfg.Enzyme.CleaveAt != "KR" || cfg.DecoyTag != "rev_" {
		t.Errorf("defaults not kept: %+v", cfg)
	}
	if diff := cmp.Diff(map[string]float64{"^": 229.162932, "K": 229.162932}, cfg.StaticMods); diff != "" {
		t.Errorf("static mods (-want +got):\n%s", diff)
	}
	if cfg.GenerateDecoys {
		t.Errorf("generate_decoys not applied")
	}

	yamlDoc := "fasta: mouse.fasta\npeptide_min_mass: 600\n"
	cfg, err = ParseConfig([]byte(yamlDoc))
	if err != nil {
		t.Fatalf("ParseConfig yaml: %v", err)
	}
	if cfg.Fasta != "mouse.fasta" || cfg.PeptideMinMass != 600 || cfg.StaticMods["C"] != 57.021464 {
		t.Errorf("yaml config %+v", cfg)
	}
}

func TestParseConfigInvalid(t *testing.T) {
	t.Setenv(fastaPathEnv, "")
	for _, doc := range []string{
		`{}`,
		`{"fasta": "x.fasta", "enzyme": {"min_len": 10, "max_len": 5}}`,
		`{"fasta": "x.fasta", "peptide_min_mass": 5000, "peptide_max_mass": 100}`,
		`{"fasta": "x.fasta", "static_mods": {"CC": 1.0}}`,
		`{"fasta": "x.fasta", "static_mods": {"J": 1.0}}`,
	} {
		if _, err := ParseConfig([]byte(doc)); !errors.Is(err, ErrConfig) {
			t.Errorf("ParseConfig(%s): error %v, should be ErrConfig", doc, err)
		}
	}
	if _, err := ParseConfig([]byte(`{"fasta": [`)); err == nil {
		t.Errorf("malformed document: expected error")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.json")
	if err := os.WriteFile(path, []byte(`{"fasta": "db.fasta"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(fastaPathEnv, "")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Fasta != filepath.Join(dir, "db.fasta") {
		t.Errorf("fasta path %s not relative to the config", cfg.Fasta)
	}

	t.Setenv(fastaPathEnv, "/data/other.fasta")
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Fasta != "/data/other.fasta" {
		t.Errorf("environment override not applied: %s", cfg.Fasta)
	}
}
