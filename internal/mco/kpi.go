package mco

import "math"

// Direction states how a KPI contributes to the optimization.
type Direction string

const (
	// Minimise drives the KPI value down. This is the default.
	Minimise Direction = "MINIMISE"
	// Maximise drives the KPI value up; internally the value is
	// negated so the loop always minimizes.
	Maximise Direction = "MAXIMISE"
	// Target drives the KPI toward a declared value; internally the
	// score is the absolute distance to it.
	Target Direction = "TARGET"
)

// KPISpec describes one column of the objective vector.
type KPISpec struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction,omitempty"`
	LowerBound  float64   `json:"lower_bound,omitempty"`
	UpperBound  float64   `json:"upper_bound,omitempty"`
	TargetValue float64   `json:"target_value,omitempty"`

	// UseBounds makes the declared bounds available for scalarization;
	// without it the bound is estimated by sampling.
	UseBounds bool `json:"use_bounds,omitempty"`

	// AutoScale divides scores by the declared bound window. Otherwise
	// ScaleFactor multiplies them (zero means 1).
	AutoScale   bool    `json:"auto_scale,omitempty"`
	ScaleFactor float64 `json:"scale_factor,omitempty"`
}

func (k KPISpec) direction() Direction {
	if k.Direction == "" {
		return Minimise
	}
	return k.Direction
}

// Validate rejects malformed KPI specifications.
func (k KPISpec) Validate() error {
	switch k.direction() {
	case Minimise, Maximise, Target:
	default:
		return NewErrorf("KPI %q: unknown direction %q", k.Name, k.Direction)
	}
	if k.UseBounds && k.UpperBound <= k.LowerBound {
		return NewErrorf("KPI %q: upper bound %v not above lower bound %v", k.Name, k.UpperBound, k.LowerBound)
	}
	if k.ScaleFactor < 0 {
		return NewErrorf("KPI %q: negative scale factor %v", k.Name, k.ScaleFactor)
	}
	return nil
}

// Score maps a raw KPI value onto the minimized scale: MAXIMISE values
// are negated, TARGET values become the absolute distance to the
// target, and the result is scaled.
func (k KPISpec) Score(v float64) float64 {
	s := v
	switch k.direction() {
	case Maximise:
		s = -v
	case Target:
		s = math.Abs(v - k.TargetValue)
	}
	return s * k.scale()
}

func (k KPISpec) scale() float64 {
	if k.AutoScale {
		if k.UseBounds {
			if w := k.UpperBound - k.LowerBound; w > 0 {
				return 1 / w
			}
		}
		return 1
	}
	if k.ScaleFactor != 0 {
		return k.ScaleFactor
	}
	return 1
}

// ScoreUpperBound returns the largest score this KPI can take under its
// declared bounds, on the same scale as Score. The canonical rule:
// MINIMISE uses the declared upper bound, MAXIMISE the negated lower
// bound, and TARGET the larger of the two distances from the target to
// a declared bound. The boolean is false when UseBounds is not set, in
// which case the bound has to be estimated by sampling.
func (k KPISpec) ScoreUpperBound() (float64, bool) {
	if !k.UseBounds {
		return 0, false
	}
	var b float64
	switch k.direction() {
	case Maximise:
		b = -k.LowerBound
	case Target:
		b = math.Max(k.UpperBound-k.TargetValue, k.TargetValue-k.LowerBound)
	default:
		b = k.UpperBound
	}
	return b * k.scale(), true
}

// ScoreUpperBounds collects the per-KPI score bounds. Entries without a
// declared bound are marked NaN and are filled in by estimation later.
func ScoreUpperBounds(kpis []KPISpec) []float64 {
	bounds := make([]float64, len(kpis))
	for i, k := range kpis {
		b, ok := k.ScoreUpperBound()
		if !ok {
			b = math.NaN()
		}
		bounds[i] = b
	}
	return bounds
}

// MinimizeFlags reports the per-KPI sign convention: true to minimize,
// false only for MAXIMISE KPIs, whose values the adapter negates.
func MinimizeFlags(kpis []KPISpec) []bool {
	flags := make([]bool, len(kpis))
	for i, k := range kpis {
		flags[i] = k.direction() != Maximise
	}
	return flags
}

// ValidUpperBounds reports whether a bound vector is complete: not
// empty and with no missing components.
func ValidUpperBounds(bounds []float64) bool {
	if len(bounds) == 0 {
		return false
	}
	for _, b := range bounds {
		if math.IsNaN(b) {
			return false
		}
	}
	return true
}

// MergeUpperBounds overrides estimated bounds with declared ones where
// present. The override is per component: a declared bound always wins
// over the estimate at its own index only.
func MergeUpperBounds(declared, estimated []float64) []float64 {
	merged := make([]float64, len(estimated))
	copy(merged, estimated)
	for i := range merged {
		if i < len(declared) && !math.IsNaN(declared[i]) {
			merged[i] = declared[i]
		}
	}
	return merged
}
