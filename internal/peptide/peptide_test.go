package peptide

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/524D/mzannotate/internal/mass"
)

const massPEPTIDE = 799.359964

func TestNewInvalidResidue(t *testing.T) {
	tests := []struct {
		seq     string
		residue byte
	}{
		{"PEPTXDE", 'X'},
		{"pEPTIDE", 'p'},
		{"PEP*TIDE", '*'},
		{"", 0},
	}
	for _, tt := range tests {
		p, err := New(tt.seq)
		if p != nil {
			t.Errorf("New(%q) returned a peptide", tt.seq)
		}
		if !errors.Is(err, ErrInvalidResidue) {
			t.Fatalf("New(%q) error %v, want ErrInvalidResidue", tt.seq, err)
		}
		var ire *InvalidResidueError
		if !errors.As(err, &ire) {
			t.Fatalf("New(%q) error is not *InvalidResidueError", tt.seq)
		}
		if ire.Residue != tt.residue {
			t.Errorf("New(%q) residue %q, want %q", tt.seq, ire.Residue, tt.residue)
		}
		if tt.seq != "" && !strings.Contains(err.Error(), tt.seq) {
			t.Errorf("error message %q does not name the input", err.Error())
		}
	}
}

func TestMass(t *testing.T) {
	p, err := New("PEPTIDE")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if math.Abs(p.Mass()-massPEPTIDE) > 1e-6 {
		t.Errorf("Mass() = %f, want %f", p.Mass(), massPEPTIDE)
	}

	p.StaticMod('E', 1.0)
	p.SetNtermMod(42.010565)
	want := massPEPTIDE + 2.0 + 42.010565
	if math.Abs(p.Mass()-want) > 1e-6 {
		t.Errorf("modified Mass() = %f, want %f", p.Mass(), want)
	}

	// A second call for the same residue replaces the delta
	p.StaticMod('E', 0.5)
	p.SetNtermMod(0)
	if math.Abs(p.Mass()-(massPEPTIDE+1.0)) > 1e-6 {
		t.Errorf("Mass() after replacing mods = %f, want %f", p.Mass(), massPEPTIDE+1.0)
	}

	// Residue not in sequence has no effect
	p.StaticMod('C', 57.021464)
	if math.Abs(p.Mass()-(massPEPTIDE+1.0)) > 1e-6 {
		t.Errorf("Mass() changed by a modification on an absent residue")
	}
}

func TestIonSeriesB(t *testing.T) {
	p, _ := New("PEPTIDE")
	got := NewIonSeries(p, B).Ions()
	want := []Ion{
		{B, 97.0527638},
		{B, 226.0953569},
		{B, 323.1481207},
		{B, 424.1957992},
		{B, 537.2798632},
		{B, 652.3068062},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("b ions mismatch (-want +got):\n%s", diff)
	}
}

func TestIonSeriesComplementary(t *testing.T) {
	p, _ := New("SAMPLERK")
	p.StaticMod('M', 15.994915)
	p.SetNtermMod(229.162932)

	b := NewIonSeries(p, B).Ions()
	y := NewIonSeries(p, Y).Ions()
	if len(b) != p.Len()-1 || len(y) != p.Len()-1 {
		t.Fatalf("got %d b and %d y ions, want %d", len(b), len(y), p.Len()-1)
	}
	for i := range b {
		if math.Abs(b[i].Mass+y[i].Mass-p.Mass()) > 1e-6 {
			t.Errorf("b[%d]+y[%d] = %f, want peptide mass %f", i, i, b[i].Mass+y[i].Mass, p.Mass())
		}
		if y[i].Kind != Y {
			t.Errorf("y[%d].Kind = %v", i, y[i].Kind)
		}
	}
	// first b ion carries the N-terminal modification
	wantB0 := 87.0320284 + 229.162932
	if math.Abs(b[0].Mass-wantB0) > 1e-6 {
		t.Errorf("b[0] = %f, want %f", b[0].Mass, wantB0)
	}
	// last y ion is the C-terminal residue plus water
	wantYLast := 128.0949630 + mass.H2O
	if math.Abs(y[len(y)-1].Mass-wantYLast) > 1e-6 {
		t.Errorf("y[last] = %f, want %f", y[len(y)-1].Mass, wantYLast)
	}
}

func TestIonSeriesRestart(t *testing.T) {
	p, _ := New("PEPTIDE")
	s := NewIonSeries(p, Y)
	first := s.Ions()
	s.Reset()
	idx, ion, ok := s.Next()
	if !ok || idx != 0 || ion != first[0] {
		t.Errorf("Next after Reset = %d, %+v, %v; want 0, %+v, true", idx, ion, ok, first[0])
	}
	if diff := cmp.Diff(first, s.Ions()); diff != "" {
		t.Errorf("second pass differs (-first +second):\n%s", diff)
	}
}

func TestIonSeriesSingleResidue(t *testing.T) {
	p, _ := New("K")
	if ions := NewIonSeries(p, B).Ions(); len(ions) != 0 {
		t.Errorf("single residue produced %d ions", len(ions))
	}
}

func TestPosition(t *testing.T) {
	if got := B.Position(0, 5); got != 1 {
		t.Errorf("B.Position(0, 5) = %d, want 1", got)
	}
	if got := Y.Position(0, 5); got != 5 {
		t.Errorf("Y.Position(0, 5) = %d, want 5", got)
	}
	if got := Y.Position(3, 5); got != 2 {
		t.Errorf("Y.Position(3, 5) = %d, want 2", got)
	}
}

func TestReversed(t *testing.T) {
	p, _ := New("PEPTIDEK")
	p.StaticMod('E', 1.0)
	d := p.Reversed()
	if d.Sequence() != "EDITPEPK" {
		t.Errorf("Reversed() = %s, want EDITPEPK", d.Sequence())
	}
	if math.Abs(d.Mass()-p.Mass()) > 1e-9 {
		t.Errorf("decoy mass %f differs from target %f", d.Mass(), p.Mass())
	}
}

func TestSiteMod(t *testing.T) {
	p, _ := New("PEPTIDEK")
	if err := p.SiteMod(1, 10.0); err != nil {
		t.Fatal(err)
	}
	if err := p.SiteMod(8, 1.0); err == nil {
		t.Error("SiteMod past the end: expected error")
	}
	b := NewIonSeries(p, B).Ions()
	// only the first E carries the delta
	if math.Abs(b[1].Mass-(226.0953569+10.0)) > 1e-6 {
		t.Errorf("b2 = %f, want %f", b[1].Mass, 226.0953569+10.0)
	}
	if math.Abs(b[5].Mass-(652.3068062+10.0)) > 1e-6 {
		t.Errorf("b6 = %f, want %f", b[5].Mass, 652.3068062+10.0)
	}

	d := p.Reversed()
	db := NewIonSeries(d, B).Ions()
	// EDITPEPK: the modified E is now at position 5
	wantB6 := 129.0425931 + 115.0269430 + 113.0840640 + 101.0476785 + 97.0527638 + 129.0425931 + 10.0
	if math.Abs(db[5].Mass-wantB6) > 1e-6 {
		t.Errorf("decoy b6 = %f, want %f", db[5].Mass, wantB6)
	}
	if math.Abs(db[4].Mass-(wantB6-129.0425931-10.0)) > 1e-6 {
		t.Errorf("decoy b5 = %f carries the site modification", db[4].Mass)
	}
}
