// Package spectrum contains scan records as read from an acquisition file,
// their processed (centroided, deisotoped, filtered) form, and the peak
// matcher that looks up observed peaks for a theoretical mass.
package spectrum

import "sort"

// Precursor of an MSn scan
type Precursor struct {
	Mz     float64 // selected ion m/z
	Charge int     // 0 if the file does not assign a charge
	// Isolation window target, 0 if absent
	IsolationMz float64
}

// RawSpectrum is one scan as read from the acquisition file. After loading
// it is shared read-only between requests.
type RawSpectrum struct {
	ID               int    // scan number
	Index            int    // position in the file
	NativeID         string // id attribute as found in the file
	Level            int
	RetentionTime    float64 // seconds
	IonInjectionTime float64 // ms, NaN if unknown
	Centroid         bool
	Precursors       []Precursor
	Mz               []float64
	Intensity        []float64
}

// Peak is a processed peak. Mass is the neutral mass of the fragment,
// i.e. m/z minus a proton for singly charged peaks.
type Peak struct {
	Mass      float64
	Intensity float64
	Charge    int // 0 if not assigned by deisotoping
}

// ProcessedSpectrum is a scan after pre-processing. It is owned by the
// request that created it.
type ProcessedSpectrum struct {
	Level            int
	ScanID           int
	RetentionTime    float64
	IonInjectionTime float64
	Precursors       []Precursor
	Peaks            []Peak
	TotalIonCurrent  float64
}

// PrecursorCharge returns the charge of the first precursor, or def when
// the scan has no precursor or its charge is unknown.
func (s *ProcessedSpectrum) PrecursorCharge(def int) int {
	if len(s.Precursors) > 0 && s.Precursors[0].Charge > 0 {
		return s.Precursors[0].Charge
	}
	return def
}

// SortedPeaks returns a copy of the peaks ordered by ascending mass.
// The spectrum itself is left untouched.
func (s *ProcessedSpectrum) SortedPeaks() []Peak {
	peaks := make([]Peak, len(s.Peaks))
	copy(peaks, s.Peaks)
	SortByMass(peaks)
	return peaks
}

// SortByMass sorts peaks in place by ascending mass. Peaks of equal mass
// are ordered by descending intensity, then charge, so the result does not
// depend on the input order.
func SortByMass(peaks []Peak) {
	sort.Slice(peaks, func(i, j int) bool {
		a, b := peaks[i], peaks[j]
		if a.Mass != b.Mass {
			return a.Mass < b.Mass
		}
		if a.Intensity != b.Intensity {
			return a.Intensity > b.Intensity
		}
		return a.Charge < b.Charge
	})
}
