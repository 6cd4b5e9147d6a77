package tree

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// stepData は x0 <= 4 で 0、それ以外で 10 になる。x1 は目的変数と無関係。
func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		1, 3,
		2, 1,
		3, 4,
		4, 1,
		5, 5,
		6, 9,
		7, 2,
		8, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 10, 10, 10, 10})
	return X, y
}

// TestDecisionTreeRegressor_FitPredict tests a one-split step function
func TestDecisionTreeRegressor_FitPredict(t *testing.T) {
	for _, criterion := range []string{CriterionSquaredError, CriterionFriedmanMSE, CriterionAbsoluteError} {
		t.Run(criterion, func(t *testing.T) {
			X, y := stepData()
			dt := NewDecisionTreeRegressor(WithCriterion(criterion))
			require.NoError(t, dt.Fit(X, y))

			assert.Equal(t, 1, dt.Depth())
			assert.Equal(t, 2, dt.NLeaves())
			assert.Equal(t, 0, dt.Nodes[0].Feature)
			assert.Equal(t, 4.5, dt.Nodes[0].Threshold)

			pred, err := dt.Predict(X)
			require.NoError(t, err)
			assert.True(t, mat.Equal(y, pred))

			score, err := dt.Score(X, y)
			require.NoError(t, err)
			assert.Equal(t, 1.0, score)
		})
	}
}

// TestDecisionTreeRegressor_LeafValue tests mean leaves for squared error and median leaves for absolute error
func TestDecisionTreeRegressor_LeafValue(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 2, 10})

	sq := NewDecisionTreeRegressor(WithMinSamplesSplit(10))
	require.NoError(t, sq.Fit(X, y))
	require.Len(t, sq.Nodes, 1)
	assert.InDelta(t, 13.0/3.0, sq.Nodes[0].Value, 1e-12)

	abs := NewDecisionTreeRegressor(WithCriterion(CriterionAbsoluteError), WithMinSamplesSplit(10))
	require.NoError(t, abs.Fit(X, y))
	assert.Equal(t, 2.0, abs.Nodes[0].Value)
}

// TestDecisionTreeRegressor_MaxDepth tests depth limiting
func TestDecisionTreeRegressor_MaxDepth(t *testing.T) {
	X := mat.NewDense(16, 1, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i*i))
	}

	deep := NewDecisionTreeRegressor()
	require.NoError(t, deep.Fit(X, y))
	assert.Equal(t, 16, deep.NLeaves(), "unlimited depth separates every distinct target")

	shallow := NewDecisionTreeRegressor(WithMaxDepth(2))
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.Depth(), 2)
	assert.LessOrEqual(t, shallow.NLeaves(), 4)
}

// TestDecisionTreeRegressor_MinSamples tests min_samples_leaf
func TestDecisionTreeRegressor_MinSamples(t *testing.T) {
	X := mat.NewDense(10, 1, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	y := mat.NewDense(10, 1, []float64{1, 9, 2, 8, 3, 7, 4, 6, 5, 5})

	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(3))
	require.NoError(t, dt.Fit(X, y))
	for _, n := range dt.Nodes {
		if n.Feature < 0 {
			assert.GreaterOrEqual(t, n.NSamples, 3)
		}
	}
}

// TestDecisionTreeRegressor_FeatureImportance tests that the irrelevant feature gets no importance
func TestDecisionTreeRegressor_FeatureImportance(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	assert.InDelta(t, 1.0, dt.FeatureImportances[0], 1e-12)
	assert.Equal(t, 0.0, dt.FeatureImportances[1])
}

// TestDecisionTreeRegressor_Deterministic tests that feature subsampling is seeded
func TestDecisionTreeRegressor_Deterministic(t *testing.T) {
	X := mat.NewDense(30, 4, nil)
	y := mat.NewDense(30, 1, nil)
	for i := 0; i < 30; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, float64((i*(j+3))%11))
		}
		y.Set(i, 0, X.At(i, 0)+2*X.At(i, 2))
	}

	a := NewDecisionTreeRegressor(WithMaxFeatures(2), WithRandomState(7))
	b := NewDecisionTreeRegressor(WithMaxFeatures(2), WithRandomState(7))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Nodes, b.Nodes)
}

// TestDecisionTreeRegressor_GetSetParams tests parameter handling
func TestDecisionTreeRegressor_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.SetParams(map[string]interface{}{
		"criterion": CriterionFriedmanMSE,
		"max_depth": 3,
	}))
	params := dt.GetParams()
	assert.Equal(t, CriterionFriedmanMSE, params["criterion"])
	assert.Equal(t, 3, params["max_depth"])

	var ve *errors.ValidationError
	assert.True(t, errors.As(dt.SetParams(map[string]interface{}{"criterion": "gini"}), &ve))
	assert.True(t, errors.As(NewDecisionTreeRegressor().SetParams(map[string]interface{}{"min_samples_leaf": 0}), &ve))
	assert.True(t, errors.As(NewDecisionTreeRegressor().SetParams(map[string]interface{}{"splitter": 1}), &ve))

	clone := NewDecisionTreeRegressor(WithMaxDepth(5)).Clone().(*DecisionTreeRegressor)
	assert.Equal(t, 5, clone.MaxDepth)
	assert.False(t, clone.State.IsFitted())
}

// TestDecisionTreeRegressor_NotFitted tests errors before fitting
func TestDecisionTreeRegressor_NotFitted(t *testing.T) {
	X, y := stepData()
	_, err := NewDecisionTreeRegressor().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

// TestDecisionTreeRegressor_Persistence tests a gob round trip
func TestDecisionTreeRegressor_Persistence(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(dt, &buf))
	obj, err := model.LoadModelFromReader(&buf)
	require.NoError(t, err)
	restored := obj.(*DecisionTreeRegressor)
	assert.Equal(t, dt.Nodes, restored.Nodes)

	p1, _ := dt.Predict(X)
	p2, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2))
}
