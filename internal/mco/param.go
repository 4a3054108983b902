// Package mco implements the multi-criteria optimization core: the
// translation of abstract parameter descriptions into a numeric search
// space, the adapter that scores candidate points against KPI
// specifications, upper-bound estimation, the scalar and
// multi-objective optimization loops, and the engine that drives a
// full run while reporting progress.
package mco

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind tags the parameter variants the translator recognizes.
type Kind string

const (
	// KindFixed is a single constant value with no search dimension.
	KindFixed Kind = "fixed"
	// KindRanged is a bounded scalar with an initial value.
	KindRanged Kind = "ranged"
	// KindRangedVector is a fixed-dimension vector with per-component
	// bounds.
	KindRangedVector Kind = "ranged_vector"
	// KindListed is an ordered discrete set of numeric levels.
	KindListed Kind = "listed"
	// KindCategorical is an unordered discrete set of labels.
	KindCategorical Kind = "categorical"
	// KindUnknown carries an arbitrary host value to be classified
	// through the capability interfaces.
	KindUnknown Kind = "unknown"
)

// Param describes one factor of the design space. Kind selects which of
// the remaining fields are meaningful. The position of a Param in the
// parameter list is significant: objective functions consume values
// positionally, so order is preserved end to end. Names need not be
// unique.
type Param struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Value holds the fixed payload for KindFixed and the host value
	// for KindUnknown.
	Value interface{} `json:"value,omitempty"`

	// Ranged scalar window.
	Low     float64 `json:"low,omitempty"`
	High    float64 `json:"high,omitempty"`
	Initial float64 `json:"initial,omitempty"`

	// Ranged vector windows, one entry per component. Nil bound
	// vectors leave the components unbounded.
	LowVec     []float64 `json:"low_vector,omitempty"`
	HighVec    []float64 `json:"high_vector,omitempty"`
	InitialVec []float64 `json:"initial_vector,omitempty"`

	// Rows and Cols record the matrix shape of a matrix-valued vector
	// parameter. Zero means a flat vector.
	Rows int `json:"rows,omitempty"`
	Cols int `json:"cols,omitempty"`

	// Ordered numeric levels for KindListed.
	Levels []float64 `json:"levels,omitempty"`

	// Unordered labels for KindCategorical.
	Categories []string `json:"categories,omitempty"`
}

// Fixed builds a constant parameter.
func Fixed(name string, value interface{}) Param {
	return Param{Name: name, Kind: KindFixed, Value: value}
}

// Ranged builds a bounded scalar parameter.
func Ranged(name string, low, high, initial float64) Param {
	return Param{Name: name, Kind: KindRanged, Low: low, High: high, Initial: initial}
}

// RangedVector builds a bounded vector parameter with per-component
// windows.
func RangedVector(name string, low, high, initial []float64) Param {
	return Param{Name: name, Kind: KindRangedVector, LowVec: low, HighVec: high, InitialVec: initial}
}

// Listed builds an ordered-choice parameter over numeric levels.
func Listed(name string, levels []float64) Param {
	return Param{Name: name, Kind: KindListed, Levels: levels}
}

// Categorical builds an unordered-choice parameter over labels.
func Categorical(name string, categories []string) Param {
	return Param{Name: name, Kind: KindCategorical, Categories: categories}
}

// Unknown wraps a host value for classification through the capability
// interfaces.
func Unknown(name string, value interface{}) Param {
	return Param{Name: name, Kind: KindUnknown, Value: value}
}

// Default returns the value the parameter takes when no explicit value
// is supplied: the fixed payload, the initial value of a ranged window,
// the first listed level, or the first category. Anything else defaults
// to zero.
func (p Param) Default() interface{} {
	switch p.Kind {
	case KindFixed:
		return p.Value
	case KindRanged:
		return p.Initial
	case KindRangedVector:
		values := append([]float64(nil), p.InitialVec...)
		if p.Rows > 0 && p.Cols > 0 {
			rows := make([][]float64, p.Rows)
			for r := 0; r < p.Rows; r++ {
				rows[r] = values[r*p.Cols : (r+1)*p.Cols]
			}
			return rows
		}
		return values
	case KindListed:
		if len(p.Levels) > 0 {
			return p.Levels[0]
		}
	case KindCategorical:
		if len(p.Categories) > 0 {
			return p.Categories[0]
		}
	}
	return 0.0
}

// Validate rejects malformed declared parameters. Unknown-kind
// parameters are never rejected here; they degrade through Classify.
func (p Param) Validate() error {
	switch p.Kind {
	case KindFixed, KindUnknown:
		return nil
	case KindRanged:
		if p.High <= p.Low {
			return NewErrorf("parameter %q: upper bound %v not above lower bound %v", p.Name, p.High, p.Low)
		}
		if p.Initial < p.Low || p.Initial > p.High {
			return NewErrorf("parameter %q: initial value %v outside [%v, %v]", p.Name, p.Initial, p.Low, p.High)
		}
	case KindRangedVector:
		n := len(p.InitialVec)
		if n == 0 {
			return NewErrorf("parameter %q: empty initial vector", p.Name)
		}
		if p.Rows > 0 && p.Rows*p.Cols != n {
			return NewErrorf("parameter %q: shape %dx%d does not hold %d components",
				p.Name, p.Rows, p.Cols, n)
		}
		if p.LowVec == nil && p.HighVec == nil {
			return nil
		}
		if len(p.LowVec) != n || len(p.HighVec) != n {
			return NewErrorf("parameter %q: bound vectors have %d and %d components, initial has %d",
				p.Name, len(p.LowVec), len(p.HighVec), n)
		}
		for i := range p.InitialVec {
			if p.HighVec[i] <= p.LowVec[i] {
				return NewErrorf("parameter %q: component %d upper bound %v not above lower bound %v",
					p.Name, i, p.HighVec[i], p.LowVec[i])
			}
			if p.InitialVec[i] < p.LowVec[i] || p.InitialVec[i] > p.HighVec[i] {
				return NewErrorf("parameter %q: component %d initial value %v outside [%v, %v]",
					p.Name, i, p.InitialVec[i], p.LowVec[i], p.HighVec[i])
			}
		}
	case KindListed:
		if len(p.Levels) == 0 {
			return NewErrorf("parameter %q: no levels", p.Name)
		}
	case KindCategorical:
		if len(p.Categories) == 0 {
			return NewErrorf("parameter %q: no categories", p.Name)
		}
	}
	return nil
}

// Capability interfaces for unknown parameter values. A host object
// exposes the one matching its nature; Classify probes them in a fixed
// precedence order.

// ChoiceSource exposes an unordered set of options.
type ChoiceSource interface {
	Choices() []interface{}
}

// LevelSource exposes an ordered sequence of numeric levels.
type LevelSource interface {
	Levels() []float64
}

// ScalarSource exposes an initial scalar value for an unbounded search
// dimension.
type ScalarSource interface {
	InitialValue() float64
}

// VectorSource exposes an initial vector value, one unbounded search
// dimension per component.
type VectorSource interface {
	InitialVector() []float64
}

// Diagnostic reports a non-fatal translation fallback.
type Diagnostic struct {
	Param   string `json:"param"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Param, d.Message)
}

// NullSentinel is the fixed payload given to parameters that defeat
// every classification probe.
const NullSentinel = "null"

// Classify resolves an unknown-kind parameter into a declared one by
// probing the capability interfaces in precedence order: unordered
// choices, then ordered levels, then scalar, then vector initials.
// gonum vectors and matrices are accepted as vector initials. A probe
// that panics counts as no match. When nothing matches the parameter
// degrades to a fixed "null" sentinel and a diagnostic is returned;
// classification never fails.
func Classify(p Param) (Param, *Diagnostic) {
	if p.Kind != KindUnknown {
		if _, known := knownKinds[p.Kind]; known {
			return p, nil
		}
	}

	v := p.Value

	if opts, ok := probeChoices(v); ok {
		labels := make([]string, len(opts))
		for i, o := range opts {
			labels[i] = fmt.Sprint(o)
		}
		return Categorical(p.Name, labels), nil
	}

	if levels, ok := probeLevels(v); ok {
		return Listed(p.Name, levels), nil
	}

	if init, ok := probeScalar(v); ok {
		return unboundedScalar(p.Name, init), nil
	}

	if init, rows, cols, ok := probeVector(v); ok {
		return unboundedVector(p.Name, init, rows, cols), nil
	}

	return Fixed(p.Name, NullSentinel), &Diagnostic{
		Param:   p.Name,
		Message: fmt.Sprintf("value of type %T could not be classified, using the %q sentinel", v, NullSentinel),
	}
}

var knownKinds = map[Kind]struct{}{
	KindFixed:        {},
	KindRanged:       {},
	KindRangedVector: {},
	KindListed:       {},
	KindCategorical:  {},
}

func unboundedScalar(name string, init float64) Param {
	return Param{Name: name, Kind: KindRanged, Low: math.Inf(-1), High: math.Inf(1), Initial: init}
}

func unboundedVector(name string, init []float64, rows, cols int) Param {
	return Param{Name: name, Kind: KindRangedVector, InitialVec: init, Rows: rows, Cols: cols}
}

func probeChoices(v interface{}) (opts []interface{}, ok bool) {
	src, is := v.(ChoiceSource)
	if !is {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			opts, ok = nil, false
		}
	}()
	opts = src.Choices()
	return opts, len(opts) > 0
}

func probeLevels(v interface{}) (levels []float64, ok bool) {
	src, is := v.(LevelSource)
	if !is {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			levels, ok = nil, false
		}
	}()
	levels = src.Levels()
	return levels, len(levels) > 0
}

func probeScalar(v interface{}) (init float64, ok bool) {
	src, is := v.(ScalarSource)
	if !is {
		return 0, false
	}
	defer func() {
		if recover() != nil {
			init, ok = 0, false
		}
	}()
	return src.InitialValue(), true
}

func probeVector(v interface{}) (init []float64, rows, cols int, ok bool) {
	defer func() {
		if recover() != nil {
			init, rows, cols, ok = nil, 0, 0, false
		}
	}()

	if src, is := v.(VectorSource); is {
		init = src.InitialVector()
		return init, 0, 0, len(init) > 0
	}

	switch m := v.(type) {
	case mat.Vector:
		n := m.Len()
		init = make([]float64, n)
		for i := 0; i < n; i++ {
			init[i] = m.AtVec(i)
		}
		return init, 0, 0, n > 0
	case mat.Matrix:
		r, c := m.Dims()
		init = make([]float64, 0, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				init = append(init, m.At(i, j))
			}
		}
		return init, r, c, r > 0 && c > 0
	}

	return nil, 0, 0, false
}
