package search

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/524D/mzannotate/internal/mass"
	"github.com/524D/mzannotate/internal/peptide"
	"github.com/524D/mzannotate/internal/spectrum"
)

// Charges tried when the precursor charge is unknown
var unknownPrecursorCharges = []int{2, 3, 4}

// Query holds the per-request search settings
type Query struct {
	PrecursorTolerance mass.Tolerance
	FragmentTolerance  mass.Tolerance
	ReportPSMs         int
	Chimera            bool
}

// Feature is one scored peptide-spectrum match
type Feature struct {
	Peptide             string  `json:"peptide"`
	PeptideLen          int     `json:"peptide_len"`
	Proteins            string  `json:"proteins"`
	NumProteins         int     `json:"num_proteins"`
	ScanNr              int     `json:"scannr"`
	Rank                int     `json:"rank"`
	Label               int     `json:"label"` // 1 target, -1 decoy
	ExpMass             float64 `json:"expmass"`
	CalcMass            float64 `json:"calcmass"`
	Charge              int     `json:"charge"`
	RT                  float64 `json:"rt"`
	DeltaMass           float64 `json:"delta_mass"` // ppm
	Hyperscore          float64 `json:"hyperscore"`
	DeltaHyperscore     float64 `json:"delta_hyperscore"`
	MatchedPeaks        int     `json:"matched_peaks"`
	LongestB            int     `json:"longest_b"`
	LongestY            int     `json:"longest_y"`
	LongestYPct         float64 `json:"longest_y_pct"`
	MatchedIntensityPct float64 `json:"matched_intensity_pct"`
	ScoredCandidates    int     `json:"scored_candidates"`
	Poisson             float64 `json:"poisson"` // log10 p-value
	QValue              float64 `json:"q_value"`
	SpecID              string  `json:"specid"`
}

// score is the intermediate result for one candidate
type score struct {
	entry      *Entry
	charge     int
	expMass    float64
	hyperscore float64
	matched    int
	longestB   int
	longestY   int
	intensity  float64
	poisson    float64
	peaks      []int // indices of matched peaks
}

// Scorer scores one spectrum against the database
type Scorer struct {
	db    *Database
	query Query
}

// NewScorer returns a scorer for q
func NewScorer(db *Database, q Query) *Scorer {
	return &Scorer{db: db, query: q}
}

// Score runs Scorer for q on spec
func (db *Database) Score(spec *spectrum.ProcessedSpectrum, q Query) []Feature {
	return NewScorer(db, q).Score(spec)
}

// Score returns the best ReportPSMs matches for spec, best first. With
// Chimera set, the peaks explained by the best match are removed and the
// best match of a second pass is appended.
func (s *Scorer) Score(spec *spectrum.ProcessedSpectrum) []Feature {
	peaks := spec.SortedPeaks()
	scores := s.scoreAll(spec, peaks)
	if len(scores) == 0 {
		return []Feature{}
	}
	n := s.query.ReportPSMs
	if n < 1 {
		n = 1
	}
	if n > len(scores) {
		n = len(scores)
	}
	features := make([]Feature, 0, n+1)
	for i := 0; i < n; i++ {
		features = append(features, s.feature(spec, peaks, scores, i, i+1))
	}

	if s.query.Chimera {
		remaining := removePeaks(peaks, scores[0].peaks)
		second := s.scoreAll(spec, remaining)
		for i := range second {
			if second[i].entry.Peptide.Sequence() == scores[0].entry.Peptide.Sequence() {
				continue
			}
			features = append(features, s.feature(spec, remaining, second, i, len(features)+1))
			break
		}
	}
	return features
}

func (s *Scorer) precursorCharges(spec *spectrum.ProcessedSpectrum) []int {
	if z := spec.PrecursorCharge(0); z > 0 {
		return []int{z}
	}
	return unknownPrecursorCharges
}

// scoreAll returns the scores of all candidates with at least one matched
// peak, best first.
func (s *Scorer) scoreAll(spec *spectrum.ProcessedSpectrum, peaks []spectrum.Peak) []score {
	if len(spec.Precursors) == 0 || len(peaks) == 0 {
		return nil
	}
	precursorMz := spec.Precursors[0].Mz
	var scores []score
	for _, z := range s.precursorCharges(spec) {
		expMass := (precursorMz - mass.Proton) * float64(z)
		lo, hi := s.query.PrecursorTolerance.Bounds(expMass)
		candidates := s.db.Candidates(lo, hi)
		for i := range candidates {
			sc := s.scoreCandidate(&candidates[i], z, peaks)
			if sc.matched == 0 {
				continue
			}
			sc.expMass = expMass
			scores = append(scores, sc)
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].hyperscore != scores[j].hyperscore {
			return scores[i].hyperscore > scores[j].hyperscore
		}
		return scores[i].entry.Peptide.Sequence() < scores[j].entry.Peptide.Sequence()
	})
	return scores
}

func (s *Scorer) scoreCandidate(e *Entry, z int, peaks []spectrum.Peak) score {
	sc := score{entry: e, charge: z}
	maxCharge := z - 1
	if maxCharge > s.db.maxFragmentCharge {
		maxCharge = s.db.maxFragmentCharge
	}
	if maxCharge < 1 {
		maxCharge = 1
	}

	var n [2]int
	var sum [2]float64
	var longest [2]int
	theoretical := 0
	seen := make(map[int]bool)
	for k, kind := range []peptide.Kind{peptide.B, peptide.Y} {
		run := 0
		series := peptide.NewIonSeries(e.Peptide, kind)
		for {
			idx, ion, ok := series.Next()
			if !ok {
				break
			}
			if ionNumber(kind, idx, e.Peptide.Len()) < s.db.minIonIndex {
				continue
			}
			hit := false
			for c := 1; c <= maxCharge; c++ {
				theoretical++
				best, ok := spectrum.MatchIndex(peaks, ion.Mass/float64(c), s.query.FragmentTolerance, spectrum.Closest)
				if !ok {
					continue
				}
				hit = true
				n[k]++
				sum[k] += peaks[best].Intensity
				if !seen[best] {
					seen[best] = true
					sc.peaks = append(sc.peaks, best)
				}
			}
			if hit {
				run++
				if run > longest[k] {
					longest[k] = run
				}
			} else {
				run = 0
			}
		}
	}
	sc.matched = n[0] + n[1]
	if sc.matched == 0 {
		return sc
	}
	sc.longestB, sc.longestY = longest[0], longest[1]
	sc.intensity = sum[0] + sum[1]
	lgB, _ := math.Lgamma(float64(n[0]) + 1)
	lgY, _ := math.Lgamma(float64(n[1]) + 1)
	sc.hyperscore = math.Log((sum[0]+1)*(sum[1]+1)) + lgB + lgY
	sc.poisson = poisson(sc.matched, theoretical, peaks, s.query.FragmentTolerance)
	sort.Ints(sc.peaks)
	return sc
}

// ionNumber returns the number of residues in the fragment
func ionNumber(kind peptide.Kind, idx, peptideLen int) int {
	if kind == peptide.Y {
		return peptideLen - 1 - idx
	}
	return idx + 1
}

// poisson returns log10 of the probability of matching at least k of n
// theoretical ions by chance, given the fraction of the mass range that
// the peak windows cover.
func poisson(k, n int, peaks []spectrum.Peak, tol mass.Tolerance) float64 {
	lo, hi := peaks[0].Mass, peaks[len(peaks)-1].Mass
	span := hi - lo
	if span <= 0 {
		return 0
	}
	mid := (lo + hi) / 2
	wlo, whi := tol.Bounds(mid)
	coverage := math.Min(1, float64(len(peaks))*(whi-wlo)/span)
	lambda := float64(n) * coverage
	if lambda <= 0 {
		return 0
	}
	p := distuv.Poisson{Lambda: lambda}.Survival(float64(k - 1))
	return math.Log10(math.Max(p, 1e-300))
}

func (s *Scorer) feature(spec *spectrum.ProcessedSpectrum, peaks []spectrum.Peak, scores []score, i, rank int) Feature {
	sc := scores[i]
	e := sc.entry
	f := Feature{
		Peptide:          e.Peptide.Sequence(),
		PeptideLen:       e.Peptide.Len(),
		Proteins:         proteinList(e.Proteins),
		NumProteins:      len(e.Proteins),
		ScanNr:           spec.ScanID,
		Rank:             rank,
		Label:            1,
		ExpMass:          sc.expMass,
		CalcMass:         e.Mass,
		Charge:           sc.charge,
		RT:               spec.RetentionTime,
		DeltaMass:        (sc.expMass - e.Mass) / e.Mass * 1e6,
		Hyperscore:       sc.hyperscore,
		MatchedPeaks:     sc.matched,
		LongestB:         sc.longestB,
		LongestY:         sc.longestY,
		ScoredCandidates: len(scores),
		Poisson:          sc.poisson,
		QValue:           1.0,
	}
	if e.Decoy {
		f.Label = -1
	}
	if i+1 < len(scores) {
		f.DeltaHyperscore = sc.hyperscore - scores[i+1].hyperscore
	} else {
		f.DeltaHyperscore = sc.hyperscore
	}
	if l := e.Peptide.Len(); l > 0 {
		f.LongestYPct = float64(sc.longestY) / float64(l)
	}
	intensities := make([]float64, len(peaks))
	for j, p := range peaks {
		intensities[j] = p.Intensity
	}
	if total := floats.Sum(intensities); total > 0 {
		matched := make([]float64, len(sc.peaks))
		for j, idx := range sc.peaks {
			matched[j] = peaks[idx].Intensity
		}
		f.MatchedIntensityPct = 100 * floats.Sum(matched) / total
	}
	f.SpecID = specID(spec.ScanID, rank)
	return f
}

// removePeaks returns peaks without the peaks at the sorted indices idx
func removePeaks(peaks []spectrum.Peak, idx []int) []spectrum.Peak {
	out := make([]spectrum.Peak, 0, len(peaks))
	j := 0
	for i, p := range peaks {
		if j < len(idx) && idx[j] == i {
			j++
			continue
		}
		out = append(out, p)
	}
	return out
}

// specID identifies a feature within a run
func specID(scan, rank int) string {
	return strconv.Itoa(scan) + "." + strconv.Itoa(rank)
}
