package solver

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"
)

// NelderMead wraps the gonum downhill simplex method. It only supports
// one-shot minimization: the simplex bookkeeping does not decompose
// into ask/tell steps, so the registry rejects it for incremental use.
type NelderMead struct {
	cfg Config
	rng *rand.Rand
}

// NewNelderMead builds a simplex solver.
func NewNelderMead(cfg Config) (*NelderMead, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NelderMead{cfg: cfg, rng: cfg.RNG()}, nil
}

// Dimension returns the search space width.
func (n *NelderMead) Dimension() int { return n.cfg.Space.Dimension() }

// Minimize restarts the simplex from the initial point and a handful
// of random draws, keeping the best result across starts. The
// evaluation budget is shared across restarts.
func (n *NelderMead) Minimize(ctx context.Context, f Objective) (Candidate, error) {
	space := n.cfg.Space
	nDims := space.Dimension()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			point := append([]float64(nil), x...)
			space.Constrain(point)
			return f(point)
		},
	}

	best := Candidate{}
	bestVal := math.Inf(1)

	remaining := n.cfg.Budget
	nStarts := 3 + nDims
	for i := 0; i < nStarts && remaining > 0; i++ {
		select {
		case <-ctx.Done():
			if best.X != nil {
				return best, ctx.Err()
			}
			return Candidate{}, ctx.Err()
		default:
		}

		start := space.Init()
		if i > 0 {
			for j, d := range space.Dims {
				start[j] = d.SampleUniform(n.rng)
			}
		}

		settings := &optimize.Settings{
			FuncEvaluations: remaining,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-6,
				Relative:   1e-6,
				Iterations: 100,
			},
		}

		method := &optimize.NelderMead{
			Reflection:  1.0,
			Expansion:   2.0,
			Contraction: 0.5,
			Shrink:      0.5,
			SimplexSize: 0.2,
		}

		result, err := optimize.Minimize(problem, start, settings, method)
		if result != nil {
			remaining -= result.Stats.FuncEvaluations
		}
		if err == nil && result != nil && result.F < bestVal {
			point := append([]float64(nil), result.X...)
			space.Constrain(point)
			bestVal = result.F
			best = Candidate{X: point}
		}
	}

	if best.X == nil {
		// Every start failed or the budget ran out before the first
		// result. Fall back to the initial point.
		best = Candidate{X: space.Init()}
	}
	return best, nil
}
