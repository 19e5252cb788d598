// Package annotate matches the theoretical b and y ions of a peptide
// against the peaks of a processed spectrum.
package annotate

import (
	"fmt"
	"strings"

	"github.com/524D/mzannotate/internal/mass"
	"github.com/524D/mzannotate/internal/peptide"
	"github.com/524D/mzannotate/internal/spectrum"
)

// DefaultMassCeiling is the largest fragment mass that is annotated
const DefaultMassCeiling = 2000.0

// Used when a spectrum carries no precursor charge
const defaultPrecursorCharge = 2

// UnmatchedPolicy selects what is reported for an ion without a matching peak
type UnmatchedPolicy int

const (
	// Omit leaves unmatched ions out of the result
	Omit UnmatchedPolicy = iota
	// Placeholder emits one record without peak data per unmatched ion
	Placeholder
)

func (u UnmatchedPolicy) String() string {
	switch u {
	case Omit:
		return "omit"
	case Placeholder:
		return "placeholder"
	}
	return fmt.Sprintf("UnmatchedPolicy(%d)", int(u))
}

// ParseUnmatchedPolicy converts "omit" or "placeholder" into a policy
func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "omit":
		return Omit, nil
	case "placeholder", "null":
		return Placeholder, nil
	}
	return 0, fmt.Errorf("unknown unmatched ion policy %q", s)
}

// MatchedPeak is one annotated fragment. Mz, Intensity and Charge are nil
// for placeholder records.
type MatchedPeak struct {
	Mz           *float64     `json:"mz"`
	Intensity    *float64     `json:"intensity"`
	Charge       *int         `json:"charge"`
	FragmentMz   float64      `json:"fragment_mz"`
	FragmentLoss float64      `json:"fragment_loss"` // always 0, neutral losses are not annotated
	FragmentKind peptide.Kind `json:"fragment_kind"`
	FragmentIdx  int          `json:"fragment_idx"`
}

// Matched reports whether the record carries an observed peak
func (m MatchedPeak) Matched() bool {
	return m.Mz != nil
}

// CountMatched returns the number of records that carry an observed peak
func CountMatched(peaks []MatchedPeak) int {
	n := 0
	for _, m := range peaks {
		if m.Matched() {
			n++
		}
	}
	return n
}

// Annotator holds the annotation settings. The zero value matches the
// closest peak, omits unmatched ions and annotates ions of any mass.
type Annotator struct {
	Policy      spectrum.Policy
	Unmatched   UnmatchedPolicy
	MassCeiling float64 // <=0 disables the ceiling
}

// New returns an annotator with the default mass ceiling
func New(policy spectrum.Policy, unmatched UnmatchedPolicy) *Annotator {
	return &Annotator{Policy: policy, Unmatched: unmatched, MassCeiling: DefaultMassCeiling}
}

// FragmentCharges returns the fragment charges tried for a spectrum:
// 1 up to one less than the precursor charge. A fragment never carries the
// full precursor charge, so a 1+ precursor gets none.
func FragmentCharges(spec *spectrum.ProcessedSpectrum) []int {
	maxCharge := spec.PrecursorCharge(defaultPrecursorCharge) - 1
	if maxCharge < 0 {
		maxCharge = 0
	}
	charges := make([]int, maxCharge)
	for i := range charges {
		charges[i] = i + 1
	}
	return charges
}

// Annotate matches every b and y ion of p, at every fragment charge, against
// the peaks of spec. Records are ordered by kind (b first), ion index and
// charge. spec is not modified.
func (a *Annotator) Annotate(p *peptide.Peptide, spec *spectrum.ProcessedSpectrum, tol mass.Tolerance) []MatchedPeak {
	peaks := spec.SortedPeaks()
	charges := FragmentCharges(spec)

	result := make([]MatchedPeak, 0)
	for _, kind := range []peptide.Kind{peptide.B, peptide.Y} {
		for idx, ion := range peptide.NewIonSeries(p, kind).Ions() {
			if a.MassCeiling > 0 && ion.Mass > a.MassCeiling {
				continue
			}
			pos := kind.Position(idx, p.Len())
			found := false
			for _, c := range charges {
				peak, ok := spectrum.Match(peaks, ion.Mass/float64(c), tol, a.Policy)
				if !ok {
					continue
				}
				found = true
				result = append(result, matched(ion, pos, peak, c))
			}
			if !found && a.Unmatched == Placeholder {
				result = append(result, MatchedPeak{
					FragmentMz:   ion.Mass + mass.Proton,
					FragmentKind: kind,
					FragmentIdx:  pos,
				})
			}
		}
	}
	return result
}

func matched(ion peptide.Ion, pos int, peak spectrum.Peak, charge int) MatchedPeak {
	mz := peak.Mass + mass.Proton
	intensity := peak.Intensity
	return MatchedPeak{
		Mz:           &mz,
		Intensity:    &intensity,
		Charge:       &charge,
		FragmentMz:   ion.Mass + mass.Proton,
		FragmentKind: ion.Kind,
		FragmentIdx:  pos,
	}
}
