package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func TestKNeighborsRegressorUniform(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 10})
	y := mat.NewDense(5, 1, []float64{0, 10, 20, 30, 100})

	knn := NewKNeighborsRegressor(2)
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(3, 1, []float64{0.9, 9, 2.5}))
	require.NoError(t, err)
	assert.InDelta(t, 5, pred.At(0, 0), 1e-12)  // neighbors 1, 0
	assert.InDelta(t, 65, pred.At(1, 0), 1e-12) // neighbors 10, 3
	// neighbors 2, 3 (equally close)
	assert.InDelta(t, 25, pred.At(2, 0), 1e-12)
}

func TestKNeighborsRegressorDistance(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 4})
	y := mat.NewDense(3, 1, []float64{0, 10, 40})

	knn := NewKNeighborsRegressor(2)
	require.NoError(t, knn.SetParams(map[string]interface{}{"weights": WeightsDistance}))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(mat.NewDense(2, 1, []float64{0.25, 1}))
	require.NoError(t, err)
	// weights 1/0.25 and 1/0.75
	assert.InDelta(t, (4*0+10.0/0.75)/(4+1/0.75), pred.At(0, 0), 1e-12)
	assert.Equal(t, 10.0, pred.At(1, 0), "an exact match takes all the weight")

	score, err := knn.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestKNeighborsRegressorParallelMatchesSerial(t *testing.T) {
	n := 300
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%17))
		X.Set(i, 1, float64(i%23))
		y.Set(i, 0, float64(i))
	}
	knn := NewKNeighborsRegressor(5)
	require.NoError(t, knn.Fit(X, y))

	all, err := knn.Predict(X)
	require.NoError(t, err)
	for _, i := range []int{0, 150, 299} {
		one, err := knn.Predict(X.Slice(i, i+1, 0, 2))
		require.NoError(t, err)
		assert.Equal(t, all.At(i, 0), one.At(0, 0))
	}
}

func TestKNeighborsRegressorErrors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0, 1, 2})

	knn := NewKNeighborsRegressor(5)
	require.NoError(t, knn.Fit(X, y))
	_, err := knn.Predict(X)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve), "more neighbors than training samples")

	var val *errors.ValidationError
	assert.True(t, errors.As(NewKNeighborsRegressor(3).SetParams(map[string]interface{}{"n_neighbors": 0}), &val))
	assert.True(t, errors.As(NewKNeighborsRegressor(3).SetParams(map[string]interface{}{"weights": "gaussian"}), &val))

	_, err = NewKNeighborsRegressor(1).Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}
