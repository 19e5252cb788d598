package mass

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Unit of a tolerance window
type Unit int

const (
	// PPM is a window relative to the target mass, in parts per million
	PPM Unit = iota
	// Da is an absolute window in Dalton
	Da
)

func (u Unit) String() string {
	switch u {
	case PPM:
		return "ppm"
	case Da:
		return "da"
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

// ErrInvalidTolerance is returned when a tolerance cannot be decoded
var ErrInvalidTolerance = errors.New("invalid tolerance")

// Tolerance is an asymmetric mass window around a target mass.
// Lo is normally negative, so a window of 10 ppm either way is
// Tolerance{Unit: PPM, Lo: -10, Hi: 10}.
type Tolerance struct {
	Unit Unit
	Lo   float64
	Hi   float64
}

// PPMTolerance returns a relative window of [lo, hi] ppm
func PPMTolerance(lo, hi float64) Tolerance {
	return Tolerance{Unit: PPM, Lo: lo, Hi: hi}
}

// DaTolerance returns an absolute window of [lo, hi] Dalton
func DaTolerance(lo, hi float64) Tolerance {
	return Tolerance{Unit: Da, Lo: lo, Hi: hi}
}

// Bounds converts a target mass into the closed interval [lo, hi]
// that is accepted as a match.
func (t Tolerance) Bounds(target float64) (float64, float64) {
	if t.Unit == Da {
		return target + t.Lo, target + t.Hi
	}
	return target + target*t.Lo/1e6, target + target*t.Hi/1e6
}

func (t Tolerance) String() string {
	return fmt.Sprintf("[%g, %g] %s", t.Lo, t.Hi, t.Unit)
}

// MarshalJSON writes the tolerance as {"ppm":[lo,hi]} or {"da":[lo,hi]}
func (t Tolerance) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string][2]float64{t.Unit.String(): {t.Lo, t.Hi}})
}

// UnmarshalJSON accepts {"ppm":[lo,hi]} or {"da":[lo,hi]}
func (t *Tolerance) UnmarshalJSON(b []byte) error {
	var raw map[string][]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: expected exactly one of \"ppm\" or \"da\"", ErrInvalidTolerance)
	}
	for k, v := range raw {
		var u Unit
		switch k {
		case "ppm":
			u = PPM
		case "da":
			u = Da
		default:
			return fmt.Errorf("%w: unknown unit %q", ErrInvalidTolerance, k)
		}
		if len(v) != 2 {
			return fmt.Errorf("%w: %s needs [lo, hi]", ErrInvalidTolerance, k)
		}
		if v[0] > v[1] {
			return fmt.Errorf("%w: lower bound %g above upper bound %g", ErrInvalidTolerance, v[0], v[1])
		}
		*t = Tolerance{Unit: u, Lo: v[0], Hi: v[1]}
	}
	return nil
}
