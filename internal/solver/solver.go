// Package solver provides gradient-free minimizers behind a uniform
// ask/tell interface. Solvers work on a plain numeric search space and
// know nothing about parameters or KPIs; higher layers translate their
// domain into Space coordinates and back.
package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Dim describes one coordinate of the search space.
type Dim struct {
	// Init is the starting value.
	Init float64
	// Sigma scales the sampling window around Init.
	Sigma float64
	// Lo and Hi bound the coordinate. Either may be infinite.
	Lo float64
	Hi float64
	// Rounded snaps values to integers. Used for choice indices.
	Rounded bool
	// Wrapped folds out-of-range values back into [Lo, Hi) instead of
	// clamping. Used for unordered choice indices.
	Wrapped bool
}

// Constrain maps an arbitrary value into the dimension's valid set.
func (d Dim) Constrain(v float64) float64 {
	if d.Wrapped && d.Hi > d.Lo && !math.IsInf(d.Lo, 0) && !math.IsInf(d.Hi, 0) {
		width := d.Hi - d.Lo
		v = math.Mod(v-d.Lo, width)
		if v < 0 {
			v += width
		}
		v += d.Lo
		if d.Rounded {
			v = math.Floor(v)
		}
		return v
	}

	if v < d.Lo {
		v = d.Lo
	}
	if v > d.Hi {
		v = d.Hi
	}
	if d.Rounded {
		v = math.Round(v)
		if v > d.Hi {
			v = math.Floor(d.Hi)
		}
		if v < d.Lo {
			v = math.Ceil(d.Lo)
		}
	}
	return v
}

// Sample draws a fresh value near Init.
func (d Dim) Sample(rng *rand.Rand) float64 {
	sigma := d.Sigma
	if sigma <= 0 {
		sigma = 1
	}
	return d.Constrain(d.Init + sigma*rng.NormFloat64())
}

// SampleUniform draws uniformly across the bounded window, falling back
// to Sample when a bound is infinite.
func (d Dim) SampleUniform(rng *rand.Rand) float64 {
	if math.IsInf(d.Lo, 0) || math.IsInf(d.Hi, 0) {
		return d.Sample(rng)
	}
	return d.Constrain(d.Lo + rng.Float64()*(d.Hi-d.Lo))
}

// Space is the numeric search space a solver explores.
type Space struct {
	Dims []Dim
}

// Dimension returns the number of coordinates.
func (s Space) Dimension() int { return len(s.Dims) }

// Init returns the constrained starting point.
func (s Space) Init() []float64 {
	x := make([]float64, len(s.Dims))
	for i, d := range s.Dims {
		x[i] = d.Constrain(d.Init)
	}
	return x
}

// Constrain maps every coordinate of x into its valid set, in place.
func (s Space) Constrain(x []float64) {
	for i, d := range s.Dims {
		x[i] = d.Constrain(x[i])
	}
}

// Candidate is a point proposed by a solver. The origin index ties the
// candidate back to the solver state that produced it, so the same
// value must be handed back to Tell.
type Candidate struct {
	X []float64

	origin int
}

// Objective is a scalar loss over the internal representation. Lower
// is better.
type Objective func(x []float64) float64

// Solver runs a full minimization over its search space.
type Solver interface {
	Dimension() int
	Minimize(ctx context.Context, f Objective) (Candidate, error)
}

// AskTeller is the incremental protocol: Ask proposes a point and Tell
// reports its loss. The multi-objective loop drives solvers through
// this interface so it can score candidates against several KPIs
// before folding them into a single loss.
type AskTeller interface {
	Solver
	Ask() Candidate
	Tell(c Candidate, loss float64)
}

// Config carries the construction parameters shared by all solvers.
type Config struct {
	Space Space
	// Budget is the number of objective evaluations Minimize may spend.
	Budget int
	// Seed fixes the random stream. Zero selects a time-based seed.
	Seed int64
}

// Validate reports whether the configuration can produce a working
// solver.
func (c Config) Validate() error {
	if c.Space.Dimension() == 0 {
		return fmt.Errorf("search space has no dimensions")
	}
	if c.Budget < 1 {
		return fmt.Errorf("budget must be positive, got %d", c.Budget)
	}
	return nil
}

// RNG builds the random source for this configuration.
func (c Config) RNG() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Run drives an ask/tell solver through budget evaluations of f,
// checking ctx between evaluations. It returns the best candidate seen.
func Run(ctx context.Context, s AskTeller, f Objective, budget int) (Candidate, error) {
	best := Candidate{}
	bestLoss := math.Inf(1)

	for i := 0; i < budget; i++ {
		select {
		case <-ctx.Done():
			if best.X != nil {
				return best, ctx.Err()
			}
			return Candidate{}, ctx.Err()
		default:
		}

		c := s.Ask()
		loss := f(c.X)
		s.Tell(c, loss)

		if loss < bestLoss {
			bestLoss = loss
			best = c
		}
	}

	if best.X == nil {
		return Candidate{}, fmt.Errorf("no candidate evaluated within budget %d", budget)
	}
	return best, nil
}

// Factory builds a solver from a configuration.
type Factory func(cfg Config) (Solver, error)

// Registry maps algorithm identifiers to solver factories. Callers
// construct one and pass it to whoever needs to build solvers; there
// is no package-level registry.
type Registry struct {
	factories map[string]Factory
}

// Built-in algorithm identifiers.
const (
	AlgTwoPointsDE  = "TwoPointsDE"
	AlgRandomSearch = "RandomSearch"
	AlgNelderMead   = "NelderMead"
)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every algorithm from this
// package registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(AlgTwoPointsDE, func(cfg Config) (Solver, error) { return NewTwoPointsDE(cfg) })
	r.MustRegister(AlgRandomSearch, func(cfg Config) (Solver, error) { return NewRandomSearch(cfg) })
	r.MustRegister(AlgNelderMead, func(cfg Config) (Solver, error) { return NewNelderMead(cfg) })
	return r
}

// Register adds a factory under the given identifier.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("algorithm name must not be empty")
	}
	if f == nil {
		return fmt.Errorf("factory for %q must not be nil", name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("algorithm %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register that panics on error. Intended for wiring
// up registries at startup.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// New builds the named solver.
func (r *Registry) New(name string, cfg Config) (Solver, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q, registered: %v", name, r.Names())
	}
	return f(cfg)
}

// NewAskTell builds the named solver and verifies it supports the
// incremental protocol before any evaluation happens.
func (r *Registry) NewAskTell(name string, cfg Config) (AskTeller, error) {
	s, err := r.New(name, cfg)
	if err != nil {
		return nil, err
	}
	at, ok := s.(AskTeller)
	if !ok {
		return nil, fmt.Errorf("algorithm %q does not support ask/tell", name)
	}
	return at, nil
}

// Names lists registered algorithm identifiers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
