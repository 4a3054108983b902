package solver

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// TwoPointsDE is differential evolution with two-point crossover: the
// trial vector takes a circular span of mutant coordinates and keeps
// the parent elsewhere. It is the default algorithm for
// multi-objective runs.
type TwoPointsDE struct {
	cfg    Config
	rng    *rand.Rand
	pop    *mat.Dense
	losses []float64
	filled int
	cursor int
	weight float64
}

// NewTwoPointsDE builds a DE solver with its initial population
// sampled around the space's starting point.
func NewTwoPointsDE(cfg Config) (*TwoPointsDE, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dims := cfg.Space.Dimension()
	size := popSize(dims)
	rng := cfg.RNG()

	pop := mat.NewDense(size, dims, nil)
	copy(pop.RawRowView(0), cfg.Space.Init())
	for i := 1; i < size; i++ {
		row := pop.RawRowView(i)
		for j, d := range cfg.Space.Dims {
			row[j] = d.Sample(rng)
		}
	}

	losses := make([]float64, size)
	for i := range losses {
		losses[i] = math.NaN()
	}

	return &TwoPointsDE{
		cfg:    cfg,
		rng:    rng,
		pop:    pop,
		losses: losses,
		weight: 0.8,
	}, nil
}

func popSize(dims int) int {
	size := 2 * dims
	if size < 30 {
		size = 30
	}
	return size
}

// Ask proposes the next candidate. The first asks serve the initial
// population; afterwards each ask builds a trial vector against a
// round-robin parent.
func (d *TwoPointsDE) Ask() Candidate {
	size, dims := d.pop.Dims()
	slot := d.cursor % size
	d.cursor++

	x := make([]float64, dims)
	if d.filled < size {
		copy(x, d.pop.RawRowView(slot))
		return Candidate{X: x, origin: slot}
	}

	a, b, c := d.pickThree(slot)
	xa := d.pop.RawRowView(a)
	xb := d.pop.RawRowView(b)
	xc := d.pop.RawRowView(c)

	copy(x, d.pop.RawRowView(slot))
	for j, take := range d.crossMask(dims) {
		if take {
			x[j] = xa[j] + d.weight*(xb[j]-xc[j])
		}
	}
	d.cfg.Space.Constrain(x)
	return Candidate{X: x, origin: slot}
}

// Tell reports the loss for a candidate. During the initial fill the
// loss is recorded as-is; afterwards a trial replaces its parent when
// it does at least as well.
func (d *TwoPointsDE) Tell(c Candidate, loss float64) {
	if math.IsNaN(loss) {
		loss = math.Inf(1)
	}

	size, _ := d.pop.Dims()
	if c.origin < 0 || c.origin >= size {
		return
	}

	if math.IsNaN(d.losses[c.origin]) {
		d.losses[c.origin] = loss
		d.filled++
		copy(d.pop.RawRowView(c.origin), c.X)
		return
	}

	if loss <= d.losses[c.origin] {
		d.losses[c.origin] = loss
		copy(d.pop.RawRowView(c.origin), c.X)
	}
}

// Minimize runs the configured budget of evaluations.
func (d *TwoPointsDE) Minimize(ctx context.Context, f Objective) (Candidate, error) {
	return Run(ctx, d, f, d.cfg.Budget)
}

// Dimension returns the search space width.
func (d *TwoPointsDE) Dimension() int { return d.cfg.Space.Dimension() }

// crossMask marks the circular span of coordinates taken from the
// mutant vector. At least one coordinate is taken and, above one
// dimension, at least one is kept from the parent.
func (d *TwoPointsDE) crossMask(dims int) []bool {
	mask := make([]bool, dims)
	if dims == 1 {
		mask[0] = true
		return mask
	}
	start := d.rng.Intn(dims)
	span := 1 + d.rng.Intn(dims-1)
	for k := 0; k < span; k++ {
		mask[(start+k)%dims] = true
	}
	return mask
}

// pickThree draws three distinct population indices, none equal to
// exclude.
func (d *TwoPointsDE) pickThree(exclude int) (int, int, int) {
	size, _ := d.pop.Dims()
	picks := make([]int, 0, 3)
	for len(picks) < 3 {
		i := d.rng.Intn(size)
		if i == exclude {
			continue
		}
		dup := false
		for _, p := range picks {
			if p == i {
				dup = true
				break
			}
		}
		if !dup {
			picks = append(picks, i)
		}
	}
	return picks[0], picks[1], picks[2]
}
