package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps scale 1")
	assert.Equal(t, 0.0, out.At(0, 1))

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	_, err = NewStandardScalerDefault().Transform(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{10, 20, 30})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))

	back, err := m.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestSimpleImputer(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(5, 2, []float64{
		1, nan,
		nan, nan,
		3, nan,
		10, nan,
		2, nan,
	})

	tests := []struct {
		strategy string
		want     float64
	}{
		{StrategyMedian, 2.5}, // even count: mean of the two middle values
		{StrategyMean, 4},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			var warned []error
			errors.SetZerologWarnFunc(func(w error) { warned = append(warned, w) })
			defer errors.SetZerologWarnFunc(nil)

			imp := NewSimpleImputer(tt.strategy)
			out, err := imp.FitTransform(X)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.At(1, 0))
			assert.Equal(t, 0.0, out.At(0, 1), "all-missing column is filled with 0")
			assert.Len(t, warned, 1)
		})
	}

	_, err := NewSimpleImputer("most_frequent").FitTransform(X)
	assert.Error(t, err, "numeric imputer does not take most_frequent")
}

func TestCategoryImputer(t *testing.T) {
	cols := [][]string{
		{"b", "a", "", "b", "a"}, // tie between a and b: smallest wins
		{"", "", "", "", ""},
	}
	imp := NewCategoryImputer(StrategyMostFrequent)
	require.NoError(t, imp.Fit(cols))
	assert.Equal(t, []string{"a", "missing_value"}, imp.Statistics)

	out, err := imp.Transform(cols)
	require.NoError(t, err)
	assert.Equal(t, "a", out[0][2])
	assert.Equal(t, "", cols[0][2], "input is not modified")

	_, err = imp.Transform(cols[:1])
	assert.Error(t, err)
}

func TestOneHotEncoder(t *testing.T) {
	cols := [][]string{{"group C", "group A", "group B", "group A"}}
	enc := NewOneHotEncoder(HandleUnknownIgnore)
	require.NoError(t, enc.Fit(cols))
	assert.Equal(t, [][]string{{"group A", "group B", "group C"}}, enc.Categories)

	out, err := enc.Transform([][]string{{"group B", "group Z"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, mat.Row(nil, 0, out))
	assert.Equal(t, []float64{0, 0, 0}, mat.Row(nil, 1, out))

	strict := NewOneHotEncoder(HandleUnknownError)
	require.NoError(t, strict.Fit(cols))
	_, err = strict.Transform([][]string{{"group Z"}})
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}
