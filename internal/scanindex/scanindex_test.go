package scanindex

import (
	"errors"
	"testing"

	"github.com/524D/mzannotate/internal/spectrum"
)

func scans(ids ...int) []spectrum.RawSpectrum {
	s := make([]spectrum.RawSpectrum, len(ids))
	for i, id := range ids {
		s[i] = spectrum.RawSpectrum{ID: id, Index: i, Level: 2}
	}
	return s
}

func denseScans(n int) []spectrum.RawSpectrum {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return scans(ids...)
}

func TestResolveDense(t *testing.T) {
	x := New(denseScans(100))
	pos, direct := x.lookup(42)
	if pos != 42 || !direct {
		t.Errorf("lookup(42) = %d, %v; want 42 via direct position", pos, direct)
	}
	s, err := x.Resolve(42)
	if err != nil || s.ID != 42 {
		t.Errorf("Resolve(42) = %+v, %v", s, err)
	}
}

func TestResolveSparse(t *testing.T) {
	x := New(scans(200, 10, 55))
	if x.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", x.Len())
	}
	pos, direct := x.lookup(55)
	if pos != 1 || direct {
		t.Errorf("lookup(55) = %d, %v; want 1 via search", pos, direct)
	}
	s, err := x.Resolve(55)
	if err != nil || s.ID != 55 {
		t.Errorf("Resolve(55) = %+v, %v", s, err)
	}
	// Position 1 holds a different scan; search must still find scan 10
	if s, err := x.Resolve(10); err != nil || s.ID != 10 {
		t.Errorf("Resolve(10) = %+v, %v", s, err)
	}
}

func TestResolveNotFound(t *testing.T) {
	for name, x := range map[string]*Index{
		"dense":  New(denseScans(100)),
		"sparse": New(scans(10, 55, 200)),
		"empty":  New(nil),
	} {
		for _, id := range []int{999, -1, 100} {
			s, err := x.Resolve(id)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("%s: Resolve(%d) error = %v, want ErrNotFound", name, id, err)
			}
			if s != nil {
				t.Errorf("%s: Resolve(%d) returned a scan", name, id)
			}
		}
	}
}

func TestNewCopiesInput(t *testing.T) {
	in := scans(3, 1, 2)
	x := New(in)
	in[0].ID = 100
	if s, err := x.Resolve(3); err != nil || s.ID != 3 {
		t.Errorf("index changed with its input: %+v, %v", s, err)
	}
	if in[1].ID != 1 {
		t.Errorf("New reordered its input")
	}
}
