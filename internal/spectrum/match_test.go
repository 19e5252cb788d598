package spectrum

import (
	"testing"

	"github.com/524D/mzannotate/internal/mass"
)

func TestMatchPolicies(t *testing.T) {
	peaks := []Peak{
		{Mass: 100.0, Intensity: 2},
		{Mass: 100.09, Intensity: 9},
	}
	tol := mass.DaTolerance(-0.1, 0.1)

	p, ok := Match(peaks, 100.0, tol, Closest)
	if !ok || p.Mass != 100.0 {
		t.Errorf("Closest: got %+v, %v; want peak at 100.0", p, ok)
	}
	p, ok = Match(peaks, 100.0, tol, MostIntense)
	if !ok || p.Mass != 100.09 {
		t.Errorf("MostIntense: got %+v, %v; want peak at 100.09", p, ok)
	}
}

func TestMatchEmptyWindow(t *testing.T) {
	peaks := []Peak{
		{Mass: 99.0, Intensity: 1},
		{Mass: 101.0, Intensity: 1},
	}
	for _, policy := range []Policy{Closest, MostIntense} {
		if p, ok := Match(peaks, 100.0, mass.DaTolerance(-0.5, 0.5), policy); ok {
			t.Errorf("%v: matched %+v in an empty window", policy, p)
		}
		if _, ok := Match(nil, 100.0, mass.DaTolerance(-0.5, 0.5), policy); ok {
			t.Errorf("%v: matched in an empty spectrum", policy)
		}
	}
}

func TestMatchTies(t *testing.T) {
	peaks := []Peak{
		{Mass: 99.95, Intensity: 7},
		{Mass: 100.05, Intensity: 7},
	}
	tol := mass.DaTolerance(-0.1, 0.1)
	// Equal distance and equal intensity: first peak in mass order wins
	if p, _ := Match(peaks, 100.0, tol, Closest); p.Mass != 99.95 {
		t.Errorf("Closest tie: got %f, want 99.95", p.Mass)
	}
	if p, _ := Match(peaks, 100.0, tol, MostIntense); p.Mass != 99.95 {
		t.Errorf("MostIntense tie: got %f, want 99.95", p.Mass)
	}
}

func TestMatchInclusiveBounds(t *testing.T) {
	peaks := []Peak{{Mass: 99.5, Intensity: 1}, {Mass: 100.5, Intensity: 2}}
	p, ok := Match(peaks, 100.0, mass.DaTolerance(-0.5, 0.5), MostIntense)
	if !ok || p.Mass != 100.5 {
		t.Errorf("got %+v, %v; want peak at 100.5", p, ok)
	}
}

func TestWindow(t *testing.T) {
	peaks := []Peak{{Mass: 1}, {Mass: 2}, {Mass: 3}, {Mass: 4}, {Mass: 5}}
	tests := []struct {
		lo, hi float64
		i1, i2 int
	}{
		{2, 4, 1, 4},
		{2.5, 3.5, 2, 3},
		{0, 0.5, 0, 0},
		{6, 7, 5, 5},
		{3.2, 3.4, 3, 3},
	}
	for _, tt := range tests {
		i1, i2 := Window(peaks, tt.lo, tt.hi)
		if i1 != tt.i1 || i2 != tt.i2 {
			t.Errorf("Window(%v, %v) = %d, %d; want %d, %d", tt.lo, tt.hi, i1, i2, tt.i1, tt.i2)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"closest", " Closest "} {
		if p, err := ParsePolicy(s); err != nil || p != Closest {
			t.Errorf("ParsePolicy(%q) = %v, %v", s, p, err)
		}
	}
	if p, err := ParsePolicy("most_intense"); err != nil || p != MostIntense {
		t.Errorf("ParsePolicy(most_intense) = %v, %v", p, err)
	}
	if _, err := ParsePolicy("loudest"); err == nil {
		t.Errorf("ParsePolicy(loudest): expected error")
	}
	if MostIntense.String() != "most_intense" {
		t.Errorf("MostIntense.String() = %s", MostIntense.String())
	}
}

func TestSortByMassDeterministic(t *testing.T) {
	a := []Peak{{300, 1, 0}, {100, 2, 0}, {100, 5, 1}, {200, 3, 2}}
	b := []Peak{{100, 5, 1}, {200, 3, 2}, {100, 2, 0}, {300, 1, 0}}
	SortByMass(a)
	SortByMass(b)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order depends on input: %v vs %v", a, b)
		}
	}
	if a[0].Intensity != 5 {
		t.Errorf("equal mass peaks not ordered by intensity: %v", a)
	}
}
