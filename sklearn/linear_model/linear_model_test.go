package linear_model

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// y = 2*x1 + 3*x2 - x3 + 5
func linearData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, math.Sin(float64(i)/10.0))
		X.Set(i, 1, math.Cos(float64(i)/10.0))
		X.Set(i, 2, float64(i)/50.0)
		y.Set(i, 0, 2*X.At(i, 0)+3*X.At(i, 1)-X.At(i, 2)+5)
	}
	return X, y
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := linearData(100)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDeltaSlice(t, []float64{2, 3, -1}, lr.Coef, 1e-8)
	assert.InDelta(t, 5, lr.Intercept, 1e-8)
	assert.Equal(t, 3, lr.Rank)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-10)
}

func TestLinearRegressionWithoutIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
	lr := NewLinearRegression(WithLRFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2, lr.Coef[0], 1e-12)
	assert.Equal(t, 0.0, lr.Intercept)
}

func TestLinearRegressionCollinearOneHot(t *testing.T) {
	// columns 1 and 2 are a complete one-hot pair, so the design is rank deficient
	X := mat.NewDense(6, 3, []float64{
		1, 1, 0,
		2, 0, 1,
		3, 1, 0,
		4, 0, 1,
		5, 1, 0,
		6, 0, 1,
	})
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 3*X.At(i, 0)+4*X.At(i, 1)+1)
	}

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 2, lr.Rank)
	for _, c := range lr.Coef {
		assert.False(t, math.IsNaN(c) || math.IsInf(c, 0))
	}
	// minimum-norm solution splits the group effect symmetrically
	assert.InDelta(t, -lr.Coef[1], lr.Coef[2], 1e-9)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(y, pred, 1e-9))
}

func TestLinearRegressionErrors(t *testing.T) {
	X, y := linearData(10)

	_, err := NewLinearRegression().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	err = NewLinearRegression().Fit(X, mat.NewDense(9, 1, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(2, 4, nil))
	assert.True(t, errors.As(err, &dim))
}

func TestLinearRegressionParams(t *testing.T) {
	lr := NewLinearRegression()
	assert.Equal(t, map[string]interface{}{"fit_intercept": true}, lr.GetParams())

	require.NoError(t, lr.SetParams(map[string]interface{}{"fit_intercept": false}))
	assert.False(t, lr.FitIntercept)

	var ve *errors.ValidationError
	assert.True(t, errors.As(lr.SetParams(map[string]interface{}{"normalize": true}), &ve))
	assert.True(t, errors.As(lr.SetParams(map[string]interface{}{"fit_intercept": "yes"}), &ve))

	X, y := linearData(20)
	require.NoError(t, lr.Fit(X, y))
	clone := lr.Clone().(*LinearRegression)
	assert.False(t, clone.FitIntercept)
	assert.False(t, clone.State.IsFitted(), "clones are unfitted")
}

// TestLinearRegressionWeightReproducibility は保存と復元で予測がビット単位で一致することを確認する
func TestLinearRegressionWeightReproducibility(t *testing.T) {
	X, y := linearData(100)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(lr, &buf))
	restored, err := model.LoadModelFromReader(&buf)
	require.NoError(t, err)

	lr2, ok := restored.(*LinearRegression)
	require.True(t, ok)
	assert.Equal(t, lr.Coef, lr2.Coef)
	assert.Equal(t, lr.Intercept, lr2.Intercept)

	pred1, err := lr.Predict(X)
	require.NoError(t, err)
	pred2, err := lr2.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pred1, pred2))
}

func TestRidgeClosedForm(t *testing.T) {
	// one feature: coef = Sxy / (Sxx + alpha) on centered data
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{1, 3, 2, 6})

	r := NewRidge(1)
	require.NoError(t, r.Fit(X, y))
	// centered x: -1.5 -0.5 0.5 1.5 (Sxx=5); centered y: -2 0 -1 3 (Sxy=7)
	assert.InDelta(t, 7.0/6.0, r.Coef[0], 1e-12)
	assert.InDelta(t, 3-7.0/6.0*2.5, r.Intercept, 1e-12)
}

func TestRidgeShrinksTowardsLinear(t *testing.T) {
	X, y := linearData(50)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	r0 := NewRidge(0)
	require.NoError(t, r0.Fit(X, y))
	assert.InDeltaSlice(t, lr.Coef, r0.Coef, 1e-8)

	norm := func(v []float64) float64 { return mat.Norm(mat.NewVecDense(len(v), v), 2) }
	big := NewRidge(100)
	require.NoError(t, big.Fit(X, y))
	assert.Less(t, norm(big.Coef), norm(lr.Coef))
}

func TestRidgeParams(t *testing.T) {
	r := NewRidge(1)
	require.NoError(t, r.SetParams(map[string]interface{}{"alpha": 10}))
	assert.Equal(t, 10.0, r.Alpha)

	var ve *errors.ValidationError
	assert.True(t, errors.As(r.SetParams(map[string]interface{}{"alpha": -1.0}), &ve))
	assert.True(t, errors.As(r.SetParams(map[string]interface{}{"solver": "svd"}), &ve))

	clone := r.Clone().(*Ridge)
	assert.Equal(t, 10.0, clone.Alpha)
	assert.False(t, clone.State.IsFitted())
}
