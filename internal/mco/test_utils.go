package mco

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/optivault/PAREX/internal/logging"
	"github.com/optivault/PAREX/internal/solver"
)

// constantObjective returns the same KPI vector for every argument set.
func constantObjective(values ...float64) ObjectiveFunc {
	return func(_ []interface{}) ([]float64, error) {
		out := make([]float64, len(values))
		copy(out, values)
		return out, nil
	}
}

// countingObjective wraps fn and counts its invocations.
func countingObjective(fn ObjectiveFunc, calls *int) ObjectiveFunc {
	return func(args []interface{}) ([]float64, error) {
		*calls++
		return fn(args)
	}
}

// quietLogger silences loop output in tests.
func quietLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel, io.Discard)
}

// repeat builds an n-element slice filled with v.
func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// mixedParams covers every declared kind plus an unclassifiable value.
func mixedParams() []Param {
	return []Param{
		Fixed("offset", 1.5),
		Ranged("gain", 0, 1, 0.5),
		RangedVector("weights", repeat(0, 10), repeat(1, 10), repeat(0.5, 10)),
		Listed("taps", []float64{1, 2, 4}),
		Categorical("mode", []string{"fast", "exact"}),
		Unknown("opaque", struct{}{}),
	}
}

// assertScoresEqual checks two score vectors for approximate equality.
func assertScoresEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// stubAskTeller is a scripted solver: Ask always proposes the space's
// starting point and Tell records every reported loss.
type stubAskTeller struct {
	space  solver.Space
	budget int
	asked  int
	tells  []float64
}

func newStubAskTeller(space solver.Space, budget int) *stubAskTeller {
	return &stubAskTeller{space: space, budget: budget}
}

func (s *stubAskTeller) Dimension() int { return s.space.Dimension() }

func (s *stubAskTeller) Ask() solver.Candidate {
	s.asked++
	return solver.Candidate{X: s.space.Init()}
}

func (s *stubAskTeller) Tell(_ solver.Candidate, loss float64) {
	s.tells = append(s.tells, loss)
}

func (s *stubAskTeller) Minimize(ctx context.Context, f solver.Objective) (solver.Candidate, error) {
	return solver.Run(ctx, s, f, s.budget)
}
