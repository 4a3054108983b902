package bayes

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/optivault/PAREX/internal/solver"
)

// AlgorithmID is the registry identifier for this solver.
const AlgorithmID = "BayesOpt"

// Factory builds an Optimizer from a solver configuration. Register it
// next to the built-in algorithms:
//
//	reg := solver.DefaultRegistry()
//	reg.MustRegister(bayes.AlgorithmID, bayes.Factory)
func Factory(cfg solver.Config) (solver.Solver, error) {
	return New(cfg)
}

// Optimizer drives the search with a Gaussian process surrogate and
// the expected improvement acquisition.
type Optimizer struct {
	cfg      solver.Config
	rng      *rand.Rand
	noiseVar float64
	logger   *zap.Logger
	buf      fitScratch

	queue [][]float64
	xs    [][]float64
	ys    []float64

	bestY float64
}

// New builds a Bayesian optimization solver.
func New(cfg solver.Config) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Optimizer{
		cfg:      cfg,
		rng:      cfg.RNG(),
		noiseVar: 1e-6,
		logger:   zap.NewNop(),
		bestY:    math.Inf(1),
	}

	nInit := 10
	if cfg.Budget < nInit {
		nInit = cfg.Budget
	}
	o.queue = o.initialDesign(nInit)
	return o, nil
}

// SetLogger routes surrogate fit diagnostics through the given logger.
func (o *Optimizer) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	o.logger = l.Named("bayes")
}

// Ask returns the next point to evaluate: the initial design first,
// then the expected improvement maximizer under the current surrogate.
func (o *Optimizer) Ask() solver.Candidate {
	if len(o.queue) > 0 {
		x := o.queue[0]
		o.queue = o.queue[1:]
		return solver.Candidate{X: x}
	}

	x, err := o.propose()
	if err != nil {
		// Surrogate trouble. Keep the run alive with a random draw.
		o.logger.Warn("Surrogate proposal failed, sampling at random", zap.Error(err))
		x = make([]float64, o.cfg.Space.Dimension())
		for j, d := range o.cfg.Space.Dims {
			x[j] = d.SampleUniform(o.rng)
		}
	}
	return solver.Candidate{X: x}
}

// Tell records an observation. Non-finite losses are discarded so they
// cannot poison the surrogate.
func (o *Optimizer) Tell(c solver.Candidate, loss float64) {
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return
	}
	o.xs = append(o.xs, append([]float64(nil), c.X...))
	o.ys = append(o.ys, loss)
	if loss < o.bestY {
		o.bestY = loss
	}
}

// Minimize runs the configured budget of evaluations.
func (o *Optimizer) Minimize(ctx context.Context, f solver.Objective) (solver.Candidate, error) {
	return solver.Run(ctx, o, f, o.cfg.Budget)
}

// Dimension returns the search space width.
func (o *Optimizer) Dimension() int { return o.cfg.Space.Dimension() }

// initialDesign produces the space-filling points evaluated before the
// surrogate takes over. The first point is the space's initial value,
// the rest come from a Latin hypercube over the bounded window.
func (o *Optimizer) initialDesign(n int) [][]float64 {
	points := make([][]float64, n)
	if n == 0 {
		return points
	}
	points[0] = o.cfg.Space.Init()
	for i := 1; i < n; i++ {
		points[i] = make([]float64, o.cfg.Space.Dimension())
	}
	if n == 1 {
		return points
	}

	strata := n - 1
	for j, d := range o.cfg.Space.Dims {
		if math.IsInf(d.Lo, 0) || math.IsInf(d.Hi, 0) {
			for i := 1; i < n; i++ {
				points[i][j] = d.Sample(o.rng)
			}
			continue
		}
		width := (d.Hi - d.Lo) / float64(strata)
		for i, cell := range o.rng.Perm(strata) {
			v := d.Lo + (float64(cell)+o.rng.Float64())*width
			points[i+1][j] = d.Constrain(v)
		}
	}
	return points
}

// propose fits the surrogate and maximizes expected improvement with
// restarted Nelder-Mead, mirroring how the model itself gets searched.
func (o *Optimizer) propose() ([]float64, error) {
	if len(o.xs) < 2 {
		return nil, fmt.Errorf("need at least 2 observations, have %d", len(o.xs))
	}

	signalVar := stat.Variance(o.ys, nil)
	if signalVar < 1e-6 {
		signalVar = 1e-6
	}
	g := newGP(NewMatern52(o.lengthScale(), signalVar), o.noiseVar)
	g.logger = o.logger
	g.buf = &o.buf
	if err := g.fit(o.xs, o.ys); err != nil {
		return nil, err
	}
	o.logger.Debug("Fitted surrogate",
		zap.Int("observations", g.observations()),
		zap.Float64("signal_variance", signalVar),
		zap.Float64("best_loss", o.bestY))

	space := o.cfg.Space
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			point := append([]float64(nil), x...)
			space.Constrain(point)
			mean, variance := g.predict(point)
			return -expectedImprovement(mean, variance, o.bestY)
		},
	}

	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Relative:   1e-6,
			Iterations: 100,
		},
	}

	nDims := space.Dimension()
	nStarts := 5 + int(5*math.Sqrt(float64(nDims)))

	var bestX []float64
	bestVal := math.Inf(1)

	for s := 0; s < nStarts; s++ {
		start := make([]float64, nDims)
		if s == 0 {
			copy(start, o.bestObserved())
		} else {
			for j, d := range space.Dims {
				start[j] = d.SampleUniform(o.rng)
			}
		}

		method := &optimize.NelderMead{
			Reflection:  1.0,
			Expansion:   2.0,
			Contraction: 0.5,
			Shrink:      0.5,
			SimplexSize: 0.2,
		}

		result, err := optimize.Minimize(problem, start, settings, method)
		if err == nil && result != nil && result.F < bestVal {
			bestVal = result.F
			bestX = append([]float64(nil), result.X...)
		}
	}

	if bestX == nil {
		return nil, fmt.Errorf("acquisition maximization failed from all %d starts", nStarts)
	}
	space.Constrain(bestX)
	return bestX, nil
}

func (o *Optimizer) bestObserved() []float64 {
	best := o.xs[0]
	bestY := o.ys[0]
	for i, y := range o.ys {
		if y < bestY {
			bestY = y
			best = o.xs[i]
		}
	}
	return best
}

// lengthScale derives the kernel scale from the bounded extent of the
// space: a quarter of the average window width.
func (o *Optimizer) lengthScale() float64 {
	total := 0.0
	count := 0
	for _, d := range o.cfg.Space.Dims {
		if math.IsInf(d.Lo, 0) || math.IsInf(d.Hi, 0) || d.Hi <= d.Lo {
			continue
		}
		total += d.Hi - d.Lo
		count++
	}
	if count == 0 {
		return 1
	}
	return total / float64(count) / 4
}

// expectedImprovement is the acquisition for minimization: how far
// below the best observed loss the posterior at this point is expected
// to land.
func expectedImprovement(mean, variance, best float64) float64 {
	imp := best - mean
	if variance <= 0 {
		if imp > 0 {
			return imp
		}
		return 0
	}
	sd := math.Sqrt(variance)
	z := imp / sd
	return imp*distuv.UnitNormal.CDF(z) + sd*distuv.UnitNormal.Prob(z)
}
