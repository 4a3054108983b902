package mco

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type choiceStub struct{ opts []interface{} }

func (c choiceStub) Choices() []interface{} { return c.opts }

type levelStub struct{ levels []float64 }

func (l levelStub) Levels() []float64 { return l.levels }

type scalarStub struct{ v float64 }

func (s scalarStub) InitialValue() float64 { return s.v }

type vectorStub struct{ v []float64 }

func (v vectorStub) InitialVector() []float64 { return v.v }

type panickyChoices struct{}

func (panickyChoices) Choices() []interface{} { panic("backing store gone") }

type panickyChoicesWithLevels struct{}

func (panickyChoicesWithLevels) Choices() []interface{} { panic("backing store gone") }
func (panickyChoicesWithLevels) Levels() []float64      { return []float64{10, 20} }

func TestParamValidate(t *testing.T) {
	tests := []struct {
		name    string
		param   Param
		wantErr bool
	}{
		{"fixed is always valid", Fixed("a", 42), false},
		{"unknown is always valid", Unknown("a", struct{}{}), false},
		{"ranged valid", Ranged("a", 0, 1, 0.5), false},
		{"ranged inverted bounds", Ranged("a", 1, 0, 0.5), true},
		{"ranged equal bounds", Ranged("a", 1, 1, 1), true},
		{"ranged initial below", Ranged("a", 0, 1, -0.5), true},
		{"ranged initial above", Ranged("a", 0, 1, 1.5), true},
		{"vector valid", RangedVector("a", []float64{0, 0}, []float64{1, 1}, []float64{0.5, 0.5}), false},
		{"vector empty initial", RangedVector("a", nil, nil, nil), true},
		{"vector unbounded", RangedVector("a", nil, nil, []float64{1, 2}), false},
		{"vector bound length mismatch", RangedVector("a", []float64{0}, []float64{1, 1}, []float64{0.5, 0.5}), true},
		{"vector component inverted", RangedVector("a", []float64{0, 2}, []float64{1, 1}, []float64{0.5, 1}), true},
		{"vector component initial outside", RangedVector("a", []float64{0, 0}, []float64{1, 1}, []float64{0.5, 2}), true},
		{"vector shape mismatch", Param{Name: "a", Kind: KindRangedVector, InitialVec: []float64{1, 2, 3}, Rows: 2, Cols: 2}, true},
		{"vector shape valid", Param{Name: "a", Kind: KindRangedVector, InitialVec: []float64{1, 2, 3, 4}, Rows: 2, Cols: 2}, false},
		{"listed valid", Listed("a", []float64{1, 2}), false},
		{"listed empty", Listed("a", nil), true},
		{"categorical valid", Categorical("a", []string{"x"}), false},
		{"categorical empty", Categorical("a", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.param.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClassifyDeclaredKindsPassThrough(t *testing.T) {
	p := Ranged("gain", 0, 1, 0.5)

	got, diag := Classify(p)

	assert.Nil(t, diag)
	assert.Equal(t, p, got)
}

func TestClassifyChoiceSource(t *testing.T) {
	p := Unknown("mode", choiceStub{opts: []interface{}{"fast", 7, 2.5}})

	got, diag := Classify(p)

	require.Nil(t, diag)
	assert.Equal(t, KindCategorical, got.Kind)
	assert.Equal(t, []string{"fast", "7", "2.5"}, got.Categories)
}

func TestClassifyLevelSource(t *testing.T) {
	p := Unknown("taps", levelStub{levels: []float64{1, 2, 4}})

	got, diag := Classify(p)

	require.Nil(t, diag)
	assert.Equal(t, KindListed, got.Kind)
	assert.Equal(t, []float64{1, 2, 4}, got.Levels)
}

func TestClassifyScalarSource(t *testing.T) {
	p := Unknown("gain", scalarStub{v: 0.25})

	got, diag := Classify(p)

	require.Nil(t, diag)
	assert.Equal(t, KindRanged, got.Kind)
	assert.Equal(t, 0.25, got.Initial)
	assert.True(t, math.IsInf(got.Low, -1))
	assert.True(t, math.IsInf(got.High, 1))
}

func TestClassifyVectorSource(t *testing.T) {
	p := Unknown("weights", vectorStub{v: []float64{1, 2, 3}})

	got, diag := Classify(p)

	require.Nil(t, diag)
	assert.Equal(t, KindRangedVector, got.Kind)
	assert.Equal(t, []float64{1, 2, 3}, got.InitialVec)
	assert.Nil(t, got.LowVec)
	assert.Nil(t, got.HighVec)
}

func TestClassifyGonumVector(t *testing.T) {
	p := Unknown("weights", mat.NewVecDense(2, []float64{0.5, -0.5}))

	got, diag := Classify(p)

	require.Nil(t, diag)
	assert.Equal(t, KindRangedVector, got.Kind)
	assert.Equal(t, []float64{0.5, -0.5}, got.InitialVec)
	assert.Zero(t, got.Rows)
}

func TestClassifyGonumMatrix(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	p := Unknown("kernel", m)

	got, diag := Classify(p)

	require.Nil(t, diag)
	assert.Equal(t, KindRangedVector, got.Kind)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, got.InitialVec)
	assert.Equal(t, 3, got.Rows)
	assert.Equal(t, 3, got.Cols)
}

func TestClassifyFallbackSentinel(t *testing.T) {
	p := Unknown("opaque", struct{ x int }{x: 1})

	got, diag := Classify(p)

	require.NotNil(t, diag)
	assert.Equal(t, "opaque", diag.Param)
	assert.Contains(t, diag.Message, "could not be classified")
	assert.Equal(t, KindFixed, got.Kind)
	assert.Equal(t, NullSentinel, got.Value)
}

func TestClassifyNilValueFallsBack(t *testing.T) {
	got, diag := Classify(Unknown("empty", nil))

	require.NotNil(t, diag)
	assert.Equal(t, KindFixed, got.Kind)
	assert.Equal(t, NullSentinel, got.Value)
}

func TestClassifyPanickyProbeFallsThrough(t *testing.T) {
	got, diag := Classify(Unknown("flaky", panickyChoicesWithLevels{}))

	require.Nil(t, diag)
	assert.Equal(t, KindListed, got.Kind)
	assert.Equal(t, []float64{10, 20}, got.Levels)
}

func TestClassifyPanickyProbeDegradesToSentinel(t *testing.T) {
	got, diag := Classify(Unknown("flaky", panickyChoices{}))

	require.NotNil(t, diag)
	assert.Equal(t, KindFixed, got.Kind)
	assert.Equal(t, NullSentinel, got.Value)
}

func TestClassifyEmptyChoicesNoMatch(t *testing.T) {
	got, diag := Classify(Unknown("empty", choiceStub{}))

	require.NotNil(t, diag)
	assert.Equal(t, KindFixed, got.Kind)
}

func TestClassifyUnrecognizedKindString(t *testing.T) {
	p := Param{Name: "odd", Kind: Kind("exotic"), Value: scalarStub{v: 3}}

	got, diag := Classify(p)

	require.Nil(t, diag)
	assert.Equal(t, KindRanged, got.Kind)
	assert.Equal(t, 3.0, got.Initial)
}

func TestParamDefault(t *testing.T) {
	tests := []struct {
		name  string
		param Param
		want  interface{}
	}{
		{name: "fixed", param: Fixed("tag", "run-7"), want: "run-7"},
		{name: "ranged", param: Ranged("gain", 0, 1, 0.25), want: 0.25},
		{name: "listed", param: Listed("taps", []float64{2, 4, 8}), want: 2.0},
		{name: "categorical", param: Categorical("mode", []string{"fast", "exact"}), want: "fast"},
		{name: "unknown", param: Unknown("opaque", struct{}{}), want: 0.0},
		{name: "empty listed", param: Param{Name: "bare", Kind: KindListed}, want: 0.0},
		{
			name:  "flat vector",
			param: RangedVector("point", nil, nil, []float64{1, 2, 3}),
			want:  []float64{1, 2, 3},
		},
		{
			name: "matrix shaped vector",
			param: Param{
				Name:       "grid",
				Kind:       KindRangedVector,
				InitialVec: []float64{1, 2, 3, 4},
				Rows:       2,
				Cols:       2,
			},
			want: [][]float64{{1, 2}, {3, 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.param.Default())
		})
	}
}
