package model_selection

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/sklearn/linear_model"
	"github.com/YuminosukeSato/mathscore/sklearn/neighbors"
)

func TestKFoldSplit(t *testing.T) {
	X := mat.NewDense(10, 1, nil)
	folds, err := NewKFold(3, false, 0).Split(X)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)

	// every row is tested exactly once
	seen := make([]int, 10)
	for _, f := range folds {
		assert.Len(t, f.TrainIndices, 10-len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
}

func TestKFoldShuffleIsSeeded(t *testing.T) {
	X := mat.NewDense(20, 1, nil)
	a, err := NewKFold(4, true, 7).Split(X)
	require.NoError(t, err)
	b, err := NewKFold(4, true, 7).Split(X)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKFoldErrors(t *testing.T) {
	_, err := NewKFold(5, false, 0).Split(mat.NewDense(3, 1, nil))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = NewKFold(1, false, 0).Split(mat.NewDense(3, 1, nil))
	var val *errors.ValidationError
	assert.True(t, errors.As(err, &val))
}

func TestParamGridCombinations(t *testing.T) {
	grid := ParamGrid{
		{Name: "a", Values: []interface{}{1, 2}},
		{Name: "b", Values: []interface{}{"x", "y", "z"}},
	}
	assert.Equal(t, 6, grid.Size())
	combos := grid.Combinations()
	require.Len(t, combos, 6)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "x"}, combos[0])
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "y"}, combos[1])
	assert.Equal(t, map[string]interface{}{"a": 2, "b": "x"}, combos[3])
	assert.Equal(t, map[string]interface{}{"a": 2, "b": "z"}, combos[5])

	assert.Equal(t, []map[string]interface{}{{}}, ParamGrid{}.Combinations())
	assert.True(t, ParamGrid(nil).IsEmpty())
}

func TestParamGridValidate(t *testing.T) {
	var ve *errors.ValidationError
	assert.True(t, errors.As(ParamGrid{{Name: "a"}}.Validate(), &ve))
	assert.True(t, errors.As(ParamGrid{
		{Name: "a", Values: []interface{}{1}},
		{Name: "a", Values: []interface{}{2}},
	}.Validate(), &ve))
	assert.NoError(t, ParamGrid{{Name: "a", Values: []interface{}{1}}}.Validate())
}

// noisyLine は y = 3x + 小さな決定的ノイズ
func noisyLine(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x := float64(i)
		X.Set(i, 0, x)
		y.Set(i, 0, 3*x+float64(i%3)-1)
	}
	return X, y
}

func TestGridSearchCVSelectsBest(t *testing.T) {
	X, y := noisyLine(30)
	grid := ParamGrid{{Name: "n_neighbors", Values: []interface{}{20, 1, 3}}}
	gs := NewGridSearchCV(neighbors.NewKNeighborsRegressor(5), grid)
	gs.CV = NewKFold(3, true, 42)
	gs.Refit = true

	res, err := gs.Fit(context.Background(), X, y)
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	for _, r := range res.Results {
		assert.Len(t, r.FoldScores, 3)
	}
	assert.NotEqual(t, 0, res.BestIndex, "20 neighbors averages over most of the line")
	assert.Equal(t, res.Results[res.BestIndex].MeanScore, res.BestScore)
	assert.Equal(t, res.Results[res.BestIndex].Params, res.BestParams)

	require.NotNil(t, res.BestEstimator)
	knn := res.BestEstimator.(*neighbors.KNeighborsRegressor)
	assert.Equal(t, res.BestParams["n_neighbors"], knn.NNeighbors)
}

func TestGridSearchCVTieKeepsEarliest(t *testing.T) {
	X, y := noisyLine(12)
	// fit_intercept is searched with the same value twice, so both score identically
	grid := ParamGrid{{Name: "fit_intercept", Values: []interface{}{true, true}}}
	res, err := NewGridSearchCV(linear_model.NewLinearRegression(), grid).Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, res.Results[0].MeanScore, res.Results[1].MeanScore)
	assert.Equal(t, 0, res.BestIndex)
}

func TestGridSearchCVDeterministicUnderParallelism(t *testing.T) {
	X, y := noisyLine(40)
	grid := ParamGrid{
		{Name: "n_neighbors", Values: []interface{}{1, 2, 3, 4, 5}},
		{Name: "weights", Values: []interface{}{"uniform", "distance"}},
	}
	serial := NewGridSearchCV(neighbors.NewKNeighborsRegressor(5), grid)
	serial.Workers = 1
	wide := NewGridSearchCV(neighbors.NewKNeighborsRegressor(5), grid)
	wide.Workers = 16

	a, err := serial.Fit(context.Background(), X, y)
	require.NoError(t, err)
	b, err := wide.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, a.Results, b.Results)
	assert.Equal(t, a.BestIndex, b.BestIndex)
}

func TestGridSearchCVFailure(t *testing.T) {
	X, y := noisyLine(12)
	grid := ParamGrid{{Name: "n_neighbors", Values: []interface{}{1, -1}}}
	_, err := NewGridSearchCV(neighbors.NewKNeighborsRegressor(5), grid).Fit(context.Background(), X, y)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

// panicky はFitでパニックする推定器
type panicky struct{ linear_model.LinearRegression }

func (p *panicky) Fit(X, y mat.Matrix) error { panic("boom") }
func (p *panicky) Clone() model.Estimator   { return &panicky{} }

func TestGridSearchCVRecoversPanics(t *testing.T) {
	X, y := noisyLine(12)
	_, err := CrossValScore(context.Background(), &panicky{}, X, y, NewKFold(3, false, 0))
	var pe *errors.PanicError
	require.True(t, errors.As(err, &pe), fmt.Sprintf("%v", err))
}

func TestGridSearchCVCancelled(t *testing.T) {
	X, y := noisyLine(12)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := CrossValScore(ctx, linear_model.NewLinearRegression(), X, y, NewKFold(3, false, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrossValScore(t *testing.T) {
	X, y := noisyLine(30)
	scores, err := CrossValScore(context.Background(), linear_model.NewLinearRegression(), X, y, NewKFold(3, false, 0))
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, s := range scores {
		assert.Greater(t, s, 0.9)
	}
}
