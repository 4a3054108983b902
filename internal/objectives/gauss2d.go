package objectives

import (
	"github.com/optivault/PAREX/internal/mco"
)

// Gauss2D is the two-well concentration surface used by the service
// demo: both KPIs are minimized, trading the deep well at (-1,-1)
// against the wide one at (1,1). Neither KPI declares bounds, so runs
// against it exercise the sampling estimator.
func Gauss2D() Problem {
	return Problem{
		Name:        "gauss2d",
		Description: "two overlapping concentration wells, both minimized",
		Params: []mco.Param{
			mco.Ranged("x", -5, 5, 0),
			mco.Ranged("y", -5, 5, 0),
		},
		KPIs: []mco.KPISpec{
			{Name: "a1"},
			{Name: "a2"},
		},
		Evaluate: func(args []interface{}) ([]float64, error) {
			x := args[0].(float64)
			y := args[1].(float64)
			a1 := gaussian(x, y, -1, -1, 0.6, -2.0)
			a2 := gaussian(x, y, 1, 1, 1.2, -1.0)
			return []float64{a1, a2}, nil
		},
	}
}
