package mco

import (
	"context"
	"io"
	"math"

	"github.com/optivault/PAREX/internal/logging"
	"github.com/optivault/PAREX/internal/solver"
)

// LoopConfig carries everything needed to build an optimization loop.
type LoopConfig struct {
	// Registry resolves the algorithm identifier to a solver factory.
	Registry *solver.Registry
	// Algorithm names the solver to drive.
	Algorithm string
	// Params is the ordered abstract parameter list.
	Params []Param
	// KPIs describe the objective vector, in the order the objective
	// returns it.
	KPIs []KPISpec
	// Objective is the user objective function.
	Objective ObjectiveFunc
	// Budget is the number of objective evaluations to spend.
	Budget int
	// BoundSample is the number of sampling cycles used to estimate
	// missing KPI upper bounds.
	BoundSample int
	// Verbose streams every evaluated point instead of only the final
	// non-dominated set.
	Verbose bool
	// Seed fixes the solver's random stream. Zero selects a time-based
	// seed.
	Seed int64
	// Log receives loop diagnostics. Nil silences them.
	Log *logging.Logger
}

// build runs the configuration-time validation shared by both loop
// variants: translation, adapter construction, and solver config. All
// rejections happen here, before any objective evaluation.
func (cfg LoopConfig) build() (*Adapter, solver.Config, *logging.Logger, []Diagnostic, error) {
	log := cfg.Log
	if log == nil {
		log = logging.New(logging.ErrorLevel, io.Discard)
	}

	if cfg.Registry == nil {
		return nil, solver.Config{}, log, nil, NewError("nil solver registry").WithComponent("loop")
	}
	if cfg.Budget < 1 {
		return nil, solver.Config{}, log, nil, NewErrorf("budget must be positive, got %d", cfg.Budget).WithComponent("loop")
	}

	p13n, diags, err := Translate(cfg.Params)
	if err != nil {
		return nil, solver.Config{}, log, diags, err
	}
	for _, d := range diags {
		log.Warn("Parameter translation fallback", map[string]interface{}{
			"param":  d.Param,
			"reason": d.Message,
		})
	}

	if p13n.Dimension() == 0 {
		return nil, solver.Config{}, log, diags, NewError("parameter list has no searchable dimensions").WithComponent("loop")
	}

	adapter, err := NewAdapter(p13n, cfg.KPIs, cfg.Objective, log)
	if err != nil {
		return nil, solver.Config{}, log, diags, err
	}

	scfg := solver.Config{Space: p13n.Space(), Budget: cfg.Budget, Seed: cfg.Seed}
	return adapter, scfg, log, diags, nil
}

// Results streams loop output in the order it becomes available, in
// the manner of bufio.Scanner: Next advances, Result returns the
// current item, Err reports what stopped the stream early. A Results
// is single-use; construct a fresh loop for another run. Abandoning
// the stream mid-run is safe, the remaining budget is simply never
// spent.
type Results struct {
	next    func() (Evaluation, bool, error)
	current Evaluation
	err     error
	done    bool
}

// Next advances to the next result. It returns false when the stream
// is exhausted or failed; Err distinguishes the two.
func (r *Results) Next() bool {
	if r.done {
		return false
	}
	e, ok, err := r.next()
	if err != nil {
		r.err = err
		r.done = true
		return false
	}
	if !ok {
		r.done = true
		return false
	}
	r.current = e
	return true
}

// Result returns the item produced by the last successful Next.
func (r *Results) Result() Evaluation { return r.current }

// Err returns the error that terminated the stream, if any.
func (r *Results) Err() error { return r.err }

// Collect drains the stream and returns everything it produced.
func (r *Results) Collect() ([]Evaluation, error) {
	var out []Evaluation
	for r.Next() {
		out = append(out, r.Result())
	}
	return out, r.Err()
}

// ScalarLoop owns one single-objective optimization run. The whole
// search is delegated to the solver's own minimize routine over the
// summed score, and exactly one result is produced.
type ScalarLoop struct {
	adapter *Adapter
	solver  solver.Solver
	log     *logging.Logger
	diags   []Diagnostic
}

// NewScalarLoop validates the configuration and builds the loop.
func NewScalarLoop(cfg LoopConfig) (*ScalarLoop, error) {
	adapter, scfg, log, diags, err := cfg.build()
	if err != nil {
		return nil, err
	}

	s, err := cfg.Registry.New(cfg.Algorithm, scfg)
	if err != nil {
		return nil, WrapError(err, "building solver").WithComponent("loop")
	}

	return &ScalarLoop{adapter: adapter, solver: s, log: log, diags: diags}, nil
}

// Diagnostics returns the translation fallbacks recorded during
// construction.
func (l *ScalarLoop) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), l.diags...)
}

// Run performs the blocking minimization. The stream carries exactly
// one item: the translated optimum, evaluated once more so its KPI
// vector travels with the arguments.
func (l *ScalarLoop) Run(ctx context.Context) *Results {
	done := false
	return &Results{next: func() (Evaluation, bool, error) {
		if done {
			return Evaluation{}, false, nil
		}
		done = true

		var evalErr error
		best, err := l.solver.Minimize(ctx, func(x []float64) float64 {
			loss, callErr := l.adapter.CallScalar(x)
			if callErr != nil {
				if evalErr == nil {
					evalErr = callErr
				}
				return math.Inf(1)
			}
			return loss
		})
		if evalErr != nil {
			return Evaluation{}, false, evalErr
		}
		if err != nil {
			return Evaluation{}, false, err
		}

		e, err := l.adapter.Call(best.X)
		if err != nil {
			return Evaluation{}, false, err
		}
		l.log.Debug("Scalar optimization finished", map[string]interface{}{"args": e.Args})
		return e, true, nil
	}}
}

// MultiObjectiveLoop owns one multi-objective optimization run: it
// drives the solver through ask/tell with the aggregate loss and keeps
// the non-dominated set of everything it evaluated.
type MultiObjectiveLoop struct {
	adapter *Adapter
	solver  solver.AskTeller
	log     *logging.Logger
	diags   []Diagnostic

	budget      int
	boundSample int
	verbose     bool

	upper   []float64
	archive *Archive
}

// NewMultiObjectiveLoop validates the configuration and builds the
// loop. The algorithm must support ask/tell; budget and bound-sample
// counts must be positive. Everything is rejected here, before any
// evaluation.
func NewMultiObjectiveLoop(cfg LoopConfig) (*MultiObjectiveLoop, error) {
	adapter, scfg, log, diags, err := cfg.build()
	if err != nil {
		return nil, err
	}
	if cfg.BoundSample < 1 {
		return nil, NewErrorf("bound sampling needs a positive cycle count, got %d", cfg.BoundSample).WithComponent("loop")
	}

	at, err := cfg.Registry.NewAskTell(cfg.Algorithm, scfg)
	if err != nil {
		return nil, WrapError(err, "building solver").WithComponent("loop")
	}

	return &MultiObjectiveLoop{
		adapter:     adapter,
		solver:      at,
		log:         log,
		diags:       diags,
		budget:      cfg.Budget,
		boundSample: cfg.BoundSample,
		verbose:     cfg.Verbose,
		archive:     NewArchive(),
	}, nil
}

// Diagnostics returns the translation fallbacks recorded during
// construction.
func (l *MultiObjectiveLoop) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), l.diags...)
}

// UpperBounds returns the resolved score upper bounds. Nil until the
// stream has started.
func (l *MultiObjectiveLoop) UpperBounds() []float64 {
	return append([]float64(nil), l.upper...)
}

// Front returns the current non-dominated set.
func (l *MultiObjectiveLoop) Front() []Evaluation {
	return l.archive.Members()
}

// Run streams results. Verbose mode yields every evaluated point, one
// per budget iteration, in ask order. Otherwise the whole budget runs
// first and the stream then yields each member of the non-dominated
// set.
func (l *MultiObjectiveLoop) Run(ctx context.Context) *Results {
	started := false
	iter := 0
	var front []Evaluation
	draining := false

	return &Results{next: func() (Evaluation, bool, error) {
		if !started {
			started = true
			if err := l.resolveBounds(ctx); err != nil {
				return Evaluation{}, false, err
			}
		}

		for !draining && iter < l.budget {
			select {
			case <-ctx.Done():
				return Evaluation{}, false, ctx.Err()
			default:
			}

			e, err := l.step(iter)
			iter++
			if err != nil {
				return Evaluation{}, false, err
			}
			if l.verbose {
				return e, true, nil
			}
		}

		if l.verbose {
			return Evaluation{}, false, nil
		}

		if !draining {
			draining = true
			front = l.archive.Members()
		}
		if len(front) == 0 {
			return Evaluation{}, false, nil
		}
		e := front[0]
		front = front[1:]
		return e, true, nil
	}}
}

// step runs one ask/evaluate/tell cycle.
func (l *MultiObjectiveLoop) step(iter int) (Evaluation, error) {
	cand := l.solver.Ask()
	e, err := l.adapter.Call(cand.X)
	if err != nil {
		return Evaluation{}, err
	}

	e.Aggregate = AggregateLoss(e.Score, l.upper)
	l.solver.Tell(cand, e.Aggregate)
	l.archive.Add(e)

	l.log.Debug("Optimization loop iteration", map[string]interface{}{
		"iteration": iter + 1,
		"budget":    l.budget,
	})
	return e, nil
}

// resolveBounds settles the score upper bounds used for aggregation:
// declared bounds when complete, otherwise a sampling estimate merged
// per component with whatever was declared.
func (l *MultiObjectiveLoop) resolveBounds(ctx context.Context) error {
	declared := ScoreUpperBounds(l.adapter.KPIs())
	if ValidUpperBounds(declared) {
		l.upper = declared
		return nil
	}

	estimated, err := EstimateUpperBounds(ctx, l.solver, l.adapter, l.boundSample, l.log)
	if err != nil {
		return err
	}
	l.upper = MergeUpperBounds(declared, estimated)

	l.log.Debug("Resolved KPI upper bounds", map[string]interface{}{"source": "estimated"})
	return nil
}
