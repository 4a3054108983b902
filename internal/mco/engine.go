package mco

import (
	"context"
	"fmt"
	"io"

	"github.com/optivault/PAREX/internal/logging"
	"github.com/optivault/PAREX/internal/solver"
)

// ProgressEvent reports one optimization result as it becomes
// available.
type ProgressEvent struct {
	// Index counts results from zero in yield order.
	Index int
	// Values holds the raw KPI vector of the result.
	Values []float64
	// Args holds the translated parameter values of the result.
	Args []interface{}
}

// Engine runs a complete multi-criteria optimization and reports each
// result as it is produced. It is the top-level entry point used by
// the server and the command line.
type Engine struct {
	Registry    *solver.Registry
	Algorithm   string
	Params      []Param
	KPIs        []KPISpec
	Objective   ObjectiveFunc
	Budget      int
	BoundSample int
	Verbose     bool
	Seed        int64
	Log         *logging.Logger
	// Notify, when set, receives a ProgressEvent per yielded result.
	Notify func(ProgressEvent)
}

// Run executes the optimization and returns the yielded evaluations in
// stream order. In verbose mode that is every evaluated point; otherwise
// it is the final non-dominated set.
func (e *Engine) Run(ctx context.Context) ([]Evaluation, error) {
	log := e.Log
	if log == nil {
		log = logging.New(logging.ErrorLevel, io.Discard)
	}

	loop, err := NewMultiObjectiveLoop(LoopConfig{
		Registry:    e.Registry,
		Algorithm:   e.Algorithm,
		Params:      e.Params,
		KPIs:        e.KPIs,
		Objective:   e.Objective,
		Budget:      e.Budget,
		BoundSample: e.BoundSample,
		Verbose:     e.Verbose,
		Seed:        e.Seed,
		Log:         log,
	})
	if err != nil {
		return nil, err
	}

	results := loop.Run(ctx)
	var out []Evaluation
	for results.Next() {
		ev := results.Result()
		log.Info(fmt.Sprintf("Doing MCO run # %d", len(out)))
		if e.Notify != nil {
			e.Notify(ProgressEvent{Index: len(out), Values: ev.Raw, Args: ev.Args})
		}
		out = append(out, ev)
	}
	if err := results.Err(); err != nil {
		return out, err
	}
	return out, nil
}
