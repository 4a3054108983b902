package solver

import (
	"context"
	"math/rand"
)

// RandomSearch samples the space independently on every ask. It keeps
// no state between asks and serves as the baseline any other algorithm
// should beat.
type RandomSearch struct {
	cfg   Config
	rng   *rand.Rand
	asked bool
}

// NewRandomSearch builds a random search solver.
func NewRandomSearch(cfg Config) (*RandomSearch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RandomSearch{cfg: cfg, rng: cfg.RNG()}, nil
}

// Ask returns the initial point first, then independent uniform draws
// across the bounded window.
func (r *RandomSearch) Ask() Candidate {
	if !r.asked {
		r.asked = true
		return Candidate{X: r.cfg.Space.Init()}
	}

	x := make([]float64, r.cfg.Space.Dimension())
	for i, d := range r.cfg.Space.Dims {
		x[i] = d.SampleUniform(r.rng)
	}
	return Candidate{X: x}
}

// Tell is a no-op.
func (r *RandomSearch) Tell(Candidate, float64) {}

// Minimize runs the configured budget of evaluations.
func (r *RandomSearch) Minimize(ctx context.Context, f Objective) (Candidate, error) {
	return Run(ctx, r, f, r.cfg.Budget)
}

// Dimension returns the search space width.
func (r *RandomSearch) Dimension() int { return r.cfg.Space.Dimension() }
