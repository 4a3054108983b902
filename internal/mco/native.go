package mco

import (
	"math"

	"github.com/optivault/PAREX/internal/solver"
)

// NativeParam is one optimizer-native parameter primitive. It occupies
// zero or more dimensions of the internal search space and knows how to
// turn its slice of an internal point back into an abstract value.
type NativeParam interface {
	Dims() []solver.Dim
	Decode(x []float64) interface{}
	// Leaves counts the scalar leaf values of the decoded form.
	Leaves() int
}

// The bounded primitives search an unconstrained internal axis and map
// it onto [low, high] with an arctan transform, so solvers never see
// the bounds at all.

// internalToBounds maps an internal value into [low, high].
func internalToBounds(z, low, high float64) float64 {
	return low + (high-low)*(math.Atan(z)/math.Pi+0.5)
}

// boundsToInternal maps an external value in [low, high] onto the
// internal axis. Values at or beyond the edges are pulled inside the
// open interval first, since the transform never reaches them exactly.
func boundsToInternal(v, low, high float64) float64 {
	ratio := (v - low) / (high - low)
	if ratio < 1e-9 {
		ratio = 1e-9
	}
	if ratio > 1-1e-9 {
		ratio = 1 - 1e-9
	}
	return math.Tan(math.Pi * (ratio - 0.5))
}

// Constant is a value that takes part in every evaluation but occupies
// no search dimension.
type Constant struct {
	Value interface{}
}

func (c Constant) Dims() []solver.Dim             { return nil }
func (c Constant) Decode(_ []float64) interface{} { return c.Value }
func (c Constant) Leaves() int                    { return leafCount(c.Value) }

// BoundedScalar is a single continuous value. With finite bounds it
// searches through the arctan transform; otherwise the internal axis is
// the value itself.
type BoundedScalar struct {
	Init float64
	Low  float64
	High float64
}

func (s BoundedScalar) bounded() bool {
	return !math.IsInf(s.Low, 0) && !math.IsInf(s.High, 0)
}

func (s BoundedScalar) Dims() []solver.Dim {
	if s.bounded() {
		return []solver.Dim{{
			Init:  boundsToInternal(s.Init, s.Low, s.High),
			Sigma: 1,
			Lo:    math.Inf(-1),
			Hi:    math.Inf(1),
		}}
	}
	return []solver.Dim{{Init: s.Init, Sigma: 1, Lo: s.Low, Hi: s.High}}
}

func (s BoundedScalar) Decode(x []float64) interface{} {
	if s.bounded() {
		return internalToBounds(x[0], s.Low, s.High)
	}
	return x[0]
}

func (s BoundedScalar) Leaves() int { return 1 }

// BoundedArray is a fixed-dimension numeric vector with per-component
// windows. Nil bound slices leave every component unbounded. A non-zero
// Rows/Cols shape decodes into nested rows instead of a flat vector.
type BoundedArray struct {
	Init []float64
	Low  []float64
	High []float64
	Rows int
	Cols int
}

func (a BoundedArray) boundedAt(i int) bool {
	return a.Low != nil && a.High != nil &&
		!math.IsInf(a.Low[i], 0) && !math.IsInf(a.High[i], 0)
}

func (a BoundedArray) Dims() []solver.Dim {
	dims := make([]solver.Dim, len(a.Init))
	for i, init := range a.Init {
		if a.boundedAt(i) {
			dims[i] = solver.Dim{
				Init:  boundsToInternal(init, a.Low[i], a.High[i]),
				Sigma: 1,
				Lo:    math.Inf(-1),
				Hi:    math.Inf(1),
			}
			continue
		}
		lo, hi := math.Inf(-1), math.Inf(1)
		if a.Low != nil {
			lo = a.Low[i]
		}
		if a.High != nil {
			hi = a.High[i]
		}
		dims[i] = solver.Dim{Init: init, Sigma: 1, Lo: lo, Hi: hi}
	}
	return dims
}

func (a BoundedArray) Decode(x []float64) interface{} {
	values := make([]float64, len(x))
	for i, z := range x {
		if a.boundedAt(i) {
			values[i] = internalToBounds(z, a.Low[i], a.High[i])
		} else {
			values[i] = z
		}
	}
	if a.Rows > 0 && a.Cols > 0 {
		rows := make([][]float64, a.Rows)
		for r := 0; r < a.Rows; r++ {
			rows[r] = values[r*a.Cols : (r+1)*a.Cols]
		}
		return rows
	}
	return values
}

func (a BoundedArray) Leaves() int { return len(a.Init) }

// TransitionChoice is an ordered choice over numeric levels. It starts
// at the middle level and moves in unit steps along the level index.
type TransitionChoice struct {
	Options []float64
}

func (t TransitionChoice) Dims() []solver.Dim {
	n := len(t.Options)
	return []solver.Dim{{
		Init:    float64(n-1) / 2,
		Sigma:   1,
		Lo:      0,
		Hi:      float64(n - 1),
		Rounded: true,
	}}
}

func (t TransitionChoice) Decode(x []float64) interface{} {
	return t.Options[t.index(x[0])]
}

func (t TransitionChoice) index(v float64) int {
	i := int(math.Round(v))
	if i < 0 {
		i = 0
	}
	if i >= len(t.Options) {
		i = len(t.Options) - 1
	}
	return i
}

func (t TransitionChoice) Leaves() int { return 1 }

// Choice is an unordered choice over labels. The index axis wraps, so
// no pair of categories is farther apart than any other.
type Choice struct {
	Options []string
}

func (c Choice) Dims() []solver.Dim {
	n := len(c.Options)
	return []solver.Dim{{
		Init:    float64(n) / 2,
		Sigma:   float64(n) / 2,
		Lo:      0,
		Hi:      float64(n),
		Rounded: true,
		Wrapped: true,
	}}
}

func (c Choice) Decode(x []float64) interface{} {
	return c.Options[c.index(x[0])]
}

func (c Choice) index(v float64) int {
	n := len(c.Options)
	i := int(math.Floor(v))
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func (c Choice) Leaves() int { return 1 }

func leafCount(v interface{}) int {
	switch t := v.(type) {
	case []float64:
		return len(t)
	case [][]float64:
		total := 0
		for _, row := range t {
			total += len(row)
		}
		return total
	default:
		return 1
	}
}

// Parametrization is the ordered native form of a parameter list. It
// owns the mapping between the solver's internal vector and abstract
// parameter values. One instance serves exactly one optimization run.
type Parametrization struct {
	names  []string
	params []NativeParam
	spans  [][2]int
	space  solver.Space
}

func newParametrization(names []string, params []NativeParam) *Parametrization {
	p := &Parametrization{names: names, params: params}
	offset := 0
	for _, np := range params {
		dims := np.Dims()
		p.space.Dims = append(p.space.Dims, dims...)
		p.spans = append(p.spans, [2]int{offset, offset + len(dims)})
		offset += len(dims)
	}
	return p
}

// Space returns the numeric search space solvers explore.
func (p *Parametrization) Space() solver.Space { return p.space }

// Decode translates an internal point into abstract parameter values,
// ordered like the original parameter list.
func (p *Parametrization) Decode(x []float64) []interface{} {
	values := make([]interface{}, len(p.params))
	for i, np := range p.params {
		span := p.spans[i]
		values[i] = np.Decode(x[span[0]:span[1]])
	}
	return values
}

// Names returns the parameter names in list order.
func (p *Parametrization) Names() []string {
	return append([]string(nil), p.names...)
}

// Len returns the number of parameters.
func (p *Parametrization) Len() int { return len(p.params) }

// Dimension returns the width of the internal search space.
func (p *Parametrization) Dimension() int { return p.space.Dimension() }

// Leaves returns the flattened scalar count across all abstract values.
func (p *Parametrization) Leaves() int {
	total := 0
	for _, np := range p.params {
		total += np.Leaves()
	}
	return total
}
