package mco

import (
	"gonum.org/v1/gonum/mat"
)

// Translate builds the native parametrization for an ordered parameter
// list. Declared kinds map directly onto native primitives; unknown or
// unrecognized kinds go through Classify first. Malformed declared
// parameters reject the whole list eagerly, before any evaluation;
// unclassifiable unknowns never do, they degrade to the "null" sentinel
// and show up in the returned diagnostics.
func Translate(params []Param) (*Parametrization, []Diagnostic, error) {
	if len(params) == 0 {
		return nil, nil, NewError("empty parameter list").WithOperation("translate").WithComponent("mco")
	}

	names := make([]string, len(params))
	natives := make([]NativeParam, len(params))
	var diags []Diagnostic

	for i, p := range params {
		resolved, diag := Classify(p)
		if diag != nil {
			diags = append(diags, *diag)
		}
		if err := resolved.Validate(); err != nil {
			return nil, diags, WrapErrorf(err, "parameter %d", i).WithOperation("translate").WithComponent("mco")
		}
		names[i] = p.Name
		natives[i] = toNative(resolved)
	}

	return newParametrization(names, natives), diags, nil
}

func toNative(p Param) NativeParam {
	switch p.Kind {
	case KindFixed:
		return Constant{Value: p.Value}
	case KindRanged:
		return BoundedScalar{Init: p.Initial, Low: p.Low, High: p.High}
	case KindRangedVector:
		return BoundedArray{
			Init: p.InitialVec,
			Low:  p.LowVec,
			High: p.HighVec,
			Rows: p.Rows,
			Cols: p.Cols,
		}
	case KindListed:
		return TransitionChoice{Options: p.Levels}
	case KindCategorical:
		return Choice{Options: p.Categories}
	}
	// Classify resolves every parameter to a declared kind before this
	// dispatch runs.
	return Constant{Value: NullSentinel}
}

// ToAbstract converts a sequence of native values into the abstract
// convention: gonum vectors become flat slices, matrices become nested
// row slices, everything else passes through unchanged.
func ToAbstract(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = abstractValue(v)
	}
	return out
}

func abstractValue(v interface{}) interface{} {
	switch m := v.(type) {
	case mat.Vector:
		out := make([]float64, m.Len())
		for i := range out {
			out[i] = m.AtVec(i)
		}
		return out
	case mat.Matrix:
		r, c := m.Dims()
		rows := make([][]float64, r)
		for i := 0; i < r; i++ {
			rows[i] = make([]float64, c)
			for j := 0; j < c; j++ {
				rows[i][j] = m.At(i, j)
			}
		}
		return rows
	default:
		return v
	}
}
