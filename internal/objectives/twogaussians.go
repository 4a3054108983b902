package objectives

import (
	"math"

	"github.com/optivault/PAREX/internal/mco"
)

// TwoGaussians is a continuous bi-objective benchmark over a single
// two-component ranged vector: a tall peak at (-1,-1) to climb and a
// narrow well at (1,1) to descend into. The Pareto set runs between
// the two centers, so every front member lands inside [-1.5, 1.5]^2.
func TwoGaussians() Problem {
	return Problem{
		Name:        "twogaussians",
		Description: "trade a tall Gaussian peak off against a narrow Gaussian well",
		Params: []mco.Param{
			mco.RangedVector("point",
				[]float64{-2, -2},
				[]float64{2, 2},
				[]float64{-0.5, -0.5},
			),
		},
		KPIs: []mco.KPISpec{
			{Name: "gauss1", Direction: mco.Maximise},
			{Name: "gauss2", Direction: mco.Minimise},
		},
		Evaluate: func(args []interface{}) ([]float64, error) {
			p := args[0].([]float64)
			g1 := gaussian(p[0], p[1], -1, -1, 0.4, 4.0)
			g2 := gaussian(p[0], p[1], 1, 1, 0.2, -1.0)
			return []float64{g1, g2}, nil
		},
	}
}

// gaussian evaluates an isotropic 2-D Gaussian of the given peak value.
func gaussian(x, y, cx, cy, sigma, peak float64) float64 {
	d2 := (x-cx)*(x-cx) + (y-cy)*(y-cy)
	return peak * math.Exp(-d2/(2*sigma*sigma))
}
