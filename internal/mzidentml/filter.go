package mzidentml

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// DefaultScoreFilter contains reasonable values for some common search
// engines and post-search scoring software:
//
//	MS:1002257 (Comet:expectation value)
//	MS:1001330 (X!Tandem:expectation value)
//	MS:1001159 (SEQUEST:expectation value)
//	MS:1002466 (PeptideShaker PSM score)
const DefaultScoreFilter = "MS:1002257(0.0:1e-2)MS:1001330(0.0:1e-2)MS:1001159(0.0:1e-2)MS:1002466(0.99:)"

// ErrScoreFilter means a score filter could not be parsed
var ErrScoreFilter = errors.New("invalid score filter")

type scoreRange struct {
	minScore float64
	maxScore float64
	priority int // lowest is used first
}

// ScoreFilter accepts identifications by score. It maps CV accessions or
// score names to an accepted range.
type ScoreFilter map[string]scoreRange

var (
	scoreFilterRE = regexp.MustCompile(`([^\(]+)\(([^\)]*)\)`)
	rangeRE       = regexp.MustCompile(`^\s*([-+]?[0-9]*\.?[0-9]*(?:[eE][-+]?[0-9]+)?):([-+]?[0-9]*\.?[0-9]*(?:[eE][-+]?[0-9]+)?)\s*$`)
)

// ParseScoreFilter parses a filter of the form
// <CVterm1|scorename1>([<minscore1>]:[<maxscore1>])...
// When multiple scores are listed, the first one on the list that an
// identification carries decides. An empty string gives a nil filter,
// which accepts everything.
func ParseScoreFilter(s string) (ScoreFilter, error) {
	if s == "" {
		return nil, nil
	}
	matches := scoreFilterRE.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrScoreFilter, s)
	}
	f := make(ScoreFilter, len(matches))
	for n, m := range matches {
		name := m[1]
		if _, ok := f[name]; ok {
			return nil, fmt.Errorf("%w: %s defined more than once", ErrScoreFilter, name)
		}
		lo, hi, err := parseFloat64Range(m[2], -math.MaxFloat64, math.MaxFloat64)
		if err != nil {
			return nil, fmt.Errorf("%w: range for score %s: %v", ErrScoreFilter, name, err)
		}
		f[name] = scoreRange{minScore: lo, maxScore: hi, priority: n}
	}
	return f, nil
}

// parseFloat64Range parses a string like "-12.01e1:+6" into -120.1 and 6.
// An omitted bound takes the default min or max.
func parseFloat64Range(r string, min, max float64) (float64, float64, error) {
	m := rangeRE.FindStringSubmatch(r)
	if m == nil {
		return 0, 0, fmt.Errorf("malformed range %q", r)
	}
	lo, hi := min, max
	var err error
	if m[1] != "" {
		if lo, err = strconv.ParseFloat(m[1], 64); err != nil {
			return 0, 0, err
		}
	}
	if m[2] != "" {
		if hi, err = strconv.ParseFloat(m[2], 64); err != nil {
			return 0, 0, err
		}
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("empty range %q", r)
	}
	return lo, hi, nil
}

// Pass reports whether ident is accepted. Identifications without any of
// the filtered scores are rejected. A nil filter accepts everything.
func (f ScoreFilter) Pass(ident *Identification) (bool, error) {
	if f == nil {
		return true, nil
	}
	best := -1
	var rng scoreRange
	var value string
	for _, cv := range ident.Cv {
		r, ok := f[cv.Accession]
		if !ok {
			r, ok = f[cv.Name]
		}
		if ok && (best < 0 || r.priority < best) {
			best = r.priority
			rng = r
			value = cv.Value
		}
	}
	if best < 0 {
		return false, nil
	}
	score, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false, fmt.Errorf("invalid score value %q for %s", value, ident.PeptideID)
	}
	return score >= rng.minScore && score <= rng.maxScore, nil
}

// Apply returns the identifications that pass f, dropping spectra that are
// left without any.
func (f ScoreFilter) Apply(idents map[string][]Identification) (map[string][]Identification, error) {
	if f == nil {
		return idents, nil
	}
	out := make(map[string][]Identification, len(idents))
	for id, list := range idents {
		for i := range list {
			ok, err := f.Pass(&list[i])
			if err != nil {
				return nil, err
			}
			if ok {
				out[id] = append(out[id], list[i])
			}
		}
	}
	return out, nil
}
