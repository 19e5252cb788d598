// Package scanindex resolves scan numbers to the scans loaded at startup.
package scanindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/524D/mzannotate/internal/spectrum"
)

// ErrNotFound is returned for scan numbers that are not in the index
var ErrNotFound = errors.New("cannot find scan id")

// Index is an immutable, ID-ordered collection of scans. It is safe for
// concurrent use.
type Index struct {
	scans []spectrum.RawSpectrum
}

// New builds an index from scans. The slice is copied and ordered by scan
// number; the caller may reuse scans afterwards.
func New(scans []spectrum.RawSpectrum) *Index {
	s := make([]spectrum.RawSpectrum, len(scans))
	copy(s, scans)
	sort.SliceStable(s, func(i, j int) bool { return s[i].ID < s[j].ID })
	return &Index{scans: s}
}

// Len returns the number of scans in the index
func (x *Index) Len() int {
	return len(x.scans)
}

// Resolve returns the scan with the given number. The returned scan is
// shared and must not be modified.
func (x *Index) Resolve(id int) (*spectrum.RawSpectrum, error) {
	i, _ := x.lookup(id)
	if i < 0 {
		return nil, fmt.Errorf("scan %d: %w", id, ErrNotFound)
	}
	return &x.scans[i], nil
}

// lookup returns the position of scan id, or -1. direct is true when the
// scan was found at position id without searching.
func (x *Index) lookup(id int) (pos int, direct bool) {
	if id < 0 {
		return -1, false
	}
	// Scan numbers are usually dense, so try the position first
	if id < len(x.scans) && x.scans[id].ID == id {
		return id, true
	}
	i := sort.Search(len(x.scans), func(i int) bool { return x.scans[i].ID >= id })
	if i < len(x.scans) && x.scans[i].ID == id {
		return i, false
	}
	return -1, false
}
