package mco

import (
	"context"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/optivault/PAREX/internal/logging"
	"github.com/optivault/PAREX/internal/solver"
)

// EstimateUpperBounds runs the given number of ask/tell cycles against
// the solver to find the componentwise maxima of the score vector.
// Every probe is told a zero loss so the sampling pass does not steer
// the solver's search state. Maxima are seeded at negative infinity,
// so the first sample initializes every component.
func EstimateUpperBounds(ctx context.Context, s solver.AskTeller, a *Adapter, cycles int, log *logging.Logger) ([]float64, error) {
	if cycles < 1 {
		return nil, NewErrorf("bound sampling needs a positive cycle count, got %d", cycles).WithComponent("estimator")
	}
	if log == nil {
		log = logging.New(logging.ErrorLevel, io.Discard)
	}

	log.Debug("Estimating KPI upper bounds", map[string]interface{}{"cycles": cycles})

	nKPI := len(a.KPIs())
	samples := make([][]float64, nKPI)

	for c := 0; c < cycles; c++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		cand := s.Ask()
		e, err := a.Call(cand.X)
		if err != nil {
			return nil, err
		}
		for i := 0; i < nKPI && i < len(e.Score); i++ {
			samples[i] = append(samples[i], e.Score[i])
		}
		s.Tell(cand, 0.0)
	}

	bounds := make([]float64, nKPI)
	for i := range bounds {
		if len(samples[i]) == 0 {
			bounds[i] = math.Inf(-1)
			continue
		}
		bounds[i] = floats.Max(samples[i])
	}

	log.Debug("Estimated KPI upper bounds", map[string]interface{}{"cycles": cycles, "kpis": nKPI})
	return bounds, nil
}
