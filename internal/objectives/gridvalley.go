package objectives

import (
	"math"

	"github.com/optivault/PAREX/internal/mco"
)

// Valley angle relative to the x axis. Chosen off the grid diagonal so
// neither listed axis lines up with the valley floor.
const valleyAngle = math.Pi / 2.9

// GridValley is a discrete scalar benchmark: two exponential slopes
// facing each other across a rotated valley, sampled on an 11x11 grid
// of listed levels. The valley floor runs where the rotated coordinate
// is 0.5, so the optimum sits strictly inside the grid.
func GridValley() Problem {
	levels := make([]float64, 11)
	for i := range levels {
		levels[i] = float64(i) / 10
	}

	return Problem{
		Name:        "gridvalley",
		Description: "two exponential slopes across a rotated valley on an 11x11 grid",
		Params: []mco.Param{
			mco.Listed("x", levels),
			mco.Listed("y", levels),
		},
		KPIs: []mco.KPISpec{
			{Name: "z1"},
			{Name: "z2"},
		},
		Evaluate: func(args []interface{}) ([]float64, error) {
			x := args[0].(float64)
			y := args[1].(float64)
			z1, z2 := valleySlopes(x, y)
			return []float64{z1, z2}, nil
		},
	}
}

func valleySlopes(x, y float64) (float64, float64) {
	xr := x*math.Cos(valleyAngle) + y*math.Sin(valleyAngle)
	return math.Exp(-0.5 - xr), math.Exp(xr - 1.5)
}

// GridValleyOptimum returns the smallest z1+z2 achievable on the grid.
func GridValleyOptimum() float64 {
	best := math.Inf(1)
	for i := 0; i <= 10; i++ {
		for j := 0; j <= 10; j++ {
			z1, z2 := valleySlopes(float64(i)/10, float64(j)/10)
			if sum := z1 + z2; sum < best {
				best = sum
			}
		}
	}
	return best
}
