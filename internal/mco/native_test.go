package mco

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedScalarRoundTrip(t *testing.T) {
	s := BoundedScalar{Init: 0.25, Low: 0, High: 1}

	dims := s.Dims()
	require.Len(t, dims, 1)
	assert.True(t, math.IsInf(dims[0].Lo, -1), "bounded scalars search an unconstrained axis")
	assert.True(t, math.IsInf(dims[0].Hi, 1))

	got := s.Decode([]float64{dims[0].Init})
	assert.InDelta(t, 0.25, got.(float64), 1e-9)
}

func TestBoundedScalarDecodeStaysInsideWindow(t *testing.T) {
	s := BoundedScalar{Init: 5, Low: 2, High: 8}

	for _, z := range []float64{-1e6, -3, 0, 3, 1e6} {
		v := s.Decode([]float64{z}).(float64)
		assert.GreaterOrEqual(t, v, 2.0)
		assert.LessOrEqual(t, v, 8.0)
	}
}

func TestBoundedScalarUnboundedIdentity(t *testing.T) {
	s := BoundedScalar{Init: 1.5, Low: math.Inf(-1), High: math.Inf(1)}

	dims := s.Dims()
	require.Len(t, dims, 1)
	assert.Equal(t, 1.5, dims[0].Init)
	assert.Equal(t, -7.25, s.Decode([]float64{-7.25}).(float64))
}

func TestBoundedScalarEdgeInitialsEncode(t *testing.T) {
	s := BoundedScalar{Init: 0, Low: 0, High: 1}

	dims := s.Dims()
	require.False(t, math.IsInf(dims[0].Init, 0), "edge initials encode to a finite internal value")

	v := s.Decode([]float64{dims[0].Init}).(float64)
	assert.InDelta(t, 0, v, 1e-6)
}

func TestBoundedArrayFlatRoundTrip(t *testing.T) {
	a := BoundedArray{
		Init: []float64{0.5, 1.5},
		Low:  []float64{0, 1},
		High: []float64{1, 2},
	}

	dims := a.Dims()
	require.Len(t, dims, 2)

	internal := []float64{dims[0].Init, dims[1].Init}
	got, ok := a.Decode(internal).([]float64)
	require.True(t, ok, "flat arrays decode to a flat slice")
	assertScoresEqual(t, got, []float64{0.5, 1.5}, 1e-9)
}

func TestBoundedArrayShapedDecode(t *testing.T) {
	a := BoundedArray{
		Init: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9},
		Rows: 3,
		Cols: 3,
	}

	dims := a.Dims()
	require.Len(t, dims, 9)

	internal := make([]float64, 9)
	for i, d := range dims {
		internal[i] = d.Init
	}

	rows, ok := a.Decode(internal).([][]float64)
	require.True(t, ok, "shaped arrays decode to nested rows")
	require.Len(t, rows, 3)
	for r := 0; r < 3; r++ {
		assertScoresEqual(t, rows[r], []float64{float64(3*r + 1), float64(3*r + 2), float64(3*r + 3)}, 1e-9)
	}
}

func TestBoundedArrayMixedBounds(t *testing.T) {
	a := BoundedArray{
		Init: []float64{0.5, 10},
		Low:  []float64{0, math.Inf(-1)},
		High: []float64{1, math.Inf(1)},
	}

	dims := a.Dims()
	require.Len(t, dims, 2)
	assert.Equal(t, 10.0, dims[1].Init, "unbounded components pass through untransformed")

	got := a.Decode([]float64{dims[0].Init, -42}).([]float64)
	assert.InDelta(t, 0.5, got[0], 1e-9)
	assert.Equal(t, -42.0, got[1])
}

func TestTransitionChoiceDims(t *testing.T) {
	tc := TransitionChoice{Options: []float64{1, 2, 4}}

	dims := tc.Dims()
	require.Len(t, dims, 1)
	assert.Equal(t, 1.0, dims[0].Init)
	assert.Equal(t, 0.0, dims[0].Lo)
	assert.Equal(t, 2.0, dims[0].Hi)
	assert.True(t, dims[0].Rounded)
	assert.False(t, dims[0].Wrapped)
}

func TestTransitionChoiceDecode(t *testing.T) {
	tc := TransitionChoice{Options: []float64{1, 2, 4}}

	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 1},
		{0, 1},
		{0.6, 2},
		{1.4, 2},
		{2, 4},
		{10, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tc.Decode([]float64{tt.in}))
	}
}

func TestChoiceDims(t *testing.T) {
	c := Choice{Options: []string{"a", "b", "c", "d"}}

	dims := c.Dims()
	require.Len(t, dims, 1)
	assert.Equal(t, 2.0, dims[0].Init)
	assert.Equal(t, 2.0, dims[0].Sigma)
	assert.Equal(t, 0.0, dims[0].Lo)
	assert.Equal(t, 4.0, dims[0].Hi)
	assert.True(t, dims[0].Rounded)
	assert.True(t, dims[0].Wrapped)
}

func TestChoiceDecodeWraps(t *testing.T) {
	c := Choice{Options: []string{"a", "b", "c", "d"}}

	tests := []struct {
		in   float64
		want string
	}{
		{0, "a"},
		{1.2, "b"},
		{3.7, "d"},
		{4, "a"},
		{5.5, "b"},
		{-1, "d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Decode([]float64{tt.in}))
	}
}

func TestConstantHasNoDims(t *testing.T) {
	c := Constant{Value: "payload"}

	assert.Empty(t, c.Dims())
	assert.Equal(t, "payload", c.Decode(nil))
}

func TestLeafCount(t *testing.T) {
	assert.Equal(t, 1, Constant{Value: 3.0}.Leaves())
	assert.Equal(t, 1, Constant{Value: "null"}.Leaves())
	assert.Equal(t, 4, Constant{Value: []float64{1, 2, 3, 4}}.Leaves())
	assert.Equal(t, 6, Constant{Value: [][]float64{{1, 2, 3}, {4, 5, 6}}}.Leaves())
}
