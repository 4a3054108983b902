package mco

import (
	"io"

	"github.com/optivault/PAREX/internal/logging"
)

// ObjectiveFunc evaluates abstract parameter values into raw KPI
// values, one per KPI specification, in KPI order.
type ObjectiveFunc func(args []interface{}) ([]float64, error)

// Evaluation is one scored probe of the objective.
type Evaluation struct {
	// Args are the translated parameter values, in parameter order.
	Args []interface{} `json:"args"`
	// Raw is the KPI vector exactly as the objective returned it.
	Raw []float64 `json:"raw"`
	// Score is Raw on the minimized scale, after direction flips and
	// scaling.
	Score []float64 `json:"score"`
	// Aggregate is the scalarized loss told back to the solver. Only
	// the multi-objective loop fills it in.
	Aggregate float64 `json:"aggregate,omitempty"`
}

// Adapter glues the parametrization, the KPI specifications, and the
// user objective to the numeric space the solvers explore. It invokes
// the objective exactly once per call.
type Adapter struct {
	params *Parametrization
	kpis   []KPISpec
	fn     ObjectiveFunc
	log    *logging.Logger

	arityWarned bool
}

// NewAdapter validates and binds the three collaborators. A nil logger
// silences diagnostics.
func NewAdapter(params *Parametrization, kpis []KPISpec, fn ObjectiveFunc, log *logging.Logger) (*Adapter, error) {
	if params == nil {
		return nil, NewError("nil parametrization").WithComponent("adapter")
	}
	if fn == nil {
		return nil, NewError("nil objective function").WithComponent("adapter")
	}
	if len(kpis) == 0 {
		return nil, NewError("no KPI specifications").WithComponent("adapter")
	}
	for _, k := range kpis {
		if err := k.Validate(); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = logging.New(logging.ErrorLevel, io.Discard)
	}
	return &Adapter{params: params, kpis: kpis, fn: fn, log: log}, nil
}

// KPIs returns the bound KPI specifications.
func (a *Adapter) KPIs() []KPISpec { return a.kpis }

// Params returns the bound parametrization.
func (a *Adapter) Params() *Parametrization { return a.params }

// Call evaluates the objective at an internal point. The returned
// score vector matches the raw vector's length: indices with a KPI
// specification go through its direction and scale transform, any
// surplus passes through unchanged. A length mismatch between the raw
// vector and the KPI list is reported once per run and tolerated. The
// raw vector is copied, so the objective may reuse its output buffer.
func (a *Adapter) Call(x []float64) (Evaluation, error) {
	args := a.params.Decode(x)

	raw, err := a.fn(args)
	if err != nil {
		return Evaluation{}, WrapError(err, "objective evaluation failed").WithComponent("adapter")
	}
	raw = append([]float64(nil), raw...)

	if len(raw) != len(a.kpis) && !a.arityWarned {
		a.arityWarned = true
		a.log.Warn("Objective arity does not match KPI count", map[string]interface{}{
			"returned": len(raw),
			"kpis":     len(a.kpis),
		})
	}

	score := make([]float64, len(raw))
	for i, v := range raw {
		if i < len(a.kpis) {
			score[i] = a.kpis[i].Score(v)
		} else {
			score[i] = v
		}
	}

	return Evaluation{Args: args, Raw: raw, Score: score}, nil
}

// CallScalar evaluates the objective at an internal point and
// collapses the score vector to a single loss by summation.
func (a *Adapter) CallScalar(x []float64) (float64, error) {
	e, err := a.Call(x)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, s := range e.Score {
		sum += s
	}
	return sum, nil
}

// AggregateLoss scalarizes a score vector against the KPI upper
// bounds. Inside the bounded region the loss is the negated volume of
// the box spanned between the scores and the bounds. Outside it is the
// total overshoot past the bounds, which is always positive. Vectors of
// different lengths are compared over their common prefix.
func AggregateLoss(score, upper []float64) float64 {
	n := len(score)
	if len(upper) < n {
		n = len(upper)
	}

	overshoot := 0.0
	out := false
	for i := 0; i < n; i++ {
		if score[i] > upper[i] {
			out = true
			overshoot += score[i] - upper[i]
		}
	}
	if out {
		return overshoot
	}

	volume := 1.0
	for i := 0; i < n; i++ {
		volume *= upper[i] - score[i]
	}
	return -volume
}
