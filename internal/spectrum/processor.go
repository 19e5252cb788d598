package spectrum

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/524D/mzannotate/internal/mass"
)

// DefaultDeisotopeTolerance is the window used to find the next isotope peak
var DefaultDeisotopeTolerance = mass.PPMTolerance(-5, 5)

// Default charge for deisotoping when the precursor charge is unknown
const defaultDeisotopeCharge = 3

// Processor turns a raw scan into a ProcessedSpectrum: it optionally
// deisotopes MS2 peaks, converts m/z to neutral mass, drops peaks above
// MaxFragmentMass and keeps the MaxPeaks most intense peaks.
type Processor struct {
	MaxPeaks           int     // <1 means all peaks
	MaxFragmentMass    float64 // <=0 means no ceiling
	Deisotope          bool
	DeisotopeTolerance mass.Tolerance
}

// NewProcessor returns a processor with the default deisotoping window
func NewProcessor(maxPeaks int, maxFragmentMass float64, deisotope bool) Processor {
	return Processor{
		MaxPeaks:           maxPeaks,
		MaxFragmentMass:    maxFragmentMass,
		Deisotope:          deisotope,
		DeisotopeTolerance: DefaultDeisotopeTolerance,
	}
}

// mzPeak is a centroid before conversion to neutral mass
type mzPeak struct {
	mz        float64
	intensity float64
	charge    int
	envelope  bool // absorbed into a lower isotope peak
}

// Process returns a new spectrum; raw is not modified.
func (p Processor) Process(raw *RawSpectrum) ProcessedSpectrum {
	spec := ProcessedSpectrum{
		Level:            raw.Level,
		ScanID:           raw.ID,
		RetentionTime:    raw.RetentionTime,
		IonInjectionTime: raw.IonInjectionTime,
		Precursors:       append([]Precursor(nil), raw.Precursors...),
		TotalIonCurrent:  floats.Sum(raw.Intensity),
	}

	n := len(raw.Mz)
	if len(raw.Intensity) < n {
		n = len(raw.Intensity)
	}
	centroids := make([]mzPeak, 0, n)
	for i := 0; i < n; i++ {
		centroids = append(centroids, mzPeak{mz: raw.Mz[i], intensity: raw.Intensity[i]})
	}
	sort.SliceStable(centroids, func(i, j int) bool { return centroids[i].mz < centroids[j].mz })

	if p.Deisotope && raw.Level == 2 {
		maxCharge := defaultDeisotopeCharge
		if len(raw.Precursors) > 0 && raw.Precursors[0].Charge > 0 {
			maxCharge = raw.Precursors[0].Charge
		}
		deisotope(centroids, maxCharge, p.DeisotopeTolerance)
	}

	peaks := make([]Peak, 0, len(centroids))
	for _, c := range centroids {
		if c.envelope {
			continue
		}
		z := c.charge
		if z == 0 {
			z = 1
		}
		m := (c.mz - mass.Proton) * float64(z)
		if p.MaxFragmentMass > 0 && m > p.MaxFragmentMass {
			continue
		}
		peaks = append(peaks, Peak{Mass: m, Intensity: c.intensity, Charge: c.charge})
	}

	spec.Peaks = topN(peaks, p.MaxPeaks)
	return spec
}

// topN keeps the n most intense peaks and returns them ordered by mass
func topN(peaks []Peak, n int) []Peak {
	if n > 0 && len(peaks) > n {
		// sort by intensity, so the most intense peaks are at the front
		sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Intensity > peaks[j].Intensity })
		peaks = peaks[:n]
	}
	SortByMass(peaks)
	return peaks
}

// deisotope walks the centroids (ordered by m/z) from high to low m/z and
// merges each peak into the peak one neutron lower at charge z, for the
// highest charge that fits. The lower peak takes the summed intensity and
// charge z; the higher peak is marked as part of the envelope.
func deisotope(c []mzPeak, maxCharge int, tol mass.Tolerance) {
	for i := len(c) - 1; i > 0; i-- {
		for z := maxCharge; z >= 1; z-- {
			if c[i].charge != 0 && c[i].charge != z {
				continue
			}
			target := c[i].mz - mass.Neutron/float64(z)
			j, ok := closestBelow(c[:i], target, tol)
			if !ok || (c[j].charge != 0 && c[j].charge != z) {
				continue
			}
			c[j].intensity += c[i].intensity
			c[j].charge = z
			c[i].envelope = true
			break
		}
	}
}

// closestBelow returns the index of the non-envelope centroid closest to
// target within tol.
func closestBelow(c []mzPeak, target float64, tol mass.Tolerance) (int, bool) {
	lo, hi := tol.Bounds(target)
	i1 := sort.Search(len(c), func(i int) bool { return c[i].mz >= lo })
	best := -1
	minEps := math.MaxFloat64
	for i := i1; i < len(c) && c[i].mz <= hi; i++ {
		if c[i].envelope {
			continue
		}
		if eps := math.Abs(c[i].mz - target); eps < minEps {
			best = i
			minEps = eps
		}
	}
	return best, best >= 0
}
