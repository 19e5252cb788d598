package spectrum

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/524D/mzannotate/internal/mass"
)

// Policy selects which peak inside a tolerance window is reported
type Policy int

const (
	// Closest picks the peak nearest to the target mass
	Closest Policy = iota
	// MostIntense picks the highest peak in the window
	MostIntense
)

func (p Policy) String() string {
	switch p {
	case Closest:
		return "closest"
	case MostIntense:
		return "most_intense"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy converts "closest" or "most_intense" into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "closest":
		return Closest, nil
	case "most_intense", "most-intense", "mostintense":
		return MostIntense, nil
	}
	return 0, fmt.Errorf("unknown peak selection policy %q", s)
}

// Window returns the half-open index range [i1, i2) of the peaks whose
// mass lies in [lo, hi]. Peaks must be sorted by mass.
func Window(peaks []Peak, lo, hi float64) (int, int) {
	i1 := sort.Search(len(peaks), func(i int) bool { return peaks[i].Mass >= lo })
	i2 := sort.Search(len(peaks), func(i int) bool { return peaks[i].Mass > hi })
	if i2 < i1 {
		i2 = i1
	}
	return i1, i2
}

// Match looks up the observed peak for target within tol.
// Peaks must be ordered by mass prior to calling this function.
// ok is false if no peak lies inside the window.
func Match(peaks []Peak, target float64, tol mass.Tolerance, policy Policy) (Peak, bool) {
	i, ok := MatchIndex(peaks, target, tol, policy)
	if !ok {
		return Peak{}, false
	}
	return peaks[i], true
}

// MatchIndex is like Match but returns the position of the peak
func MatchIndex(peaks []Peak, target float64, tol mass.Tolerance, policy Policy) (int, bool) {
	lo, hi := tol.Bounds(target)
	i1, i2 := Window(peaks, lo, hi)
	if i1 == i2 {
		return -1, false
	}
	if policy == MostIntense {
		return i1 + mostIntense(peaks[i1:i2]), true
	}
	return i1 + closest(peaks[i1:i2], target), true
}

// closest returns the index of the peak nearest to target; on a tie the
// lower mass wins
func closest(peaks []Peak, target float64) int {
	best := 0
	minEps := math.Abs(peaks[0].Mass - target)
	for i := 1; i < len(peaks); i++ {
		if eps := math.Abs(peaks[i].Mass - target); eps < minEps {
			best = i
			minEps = eps
		}
	}
	return best
}

// mostIntense returns the index of the highest intensity peak; on a tie the
// lower mass wins
func mostIntense(peaks []Peak) int {
	best := 0
	for i := 1; i < len(peaks); i++ {
		if peaks[i].Intensity > peaks[best].Intensity {
			best = i
		}
	}
	return best
}
