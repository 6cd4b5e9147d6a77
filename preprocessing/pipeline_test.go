package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/dataset"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func studentTable() *dataset.Table {
	nan := math.NaN()
	return dataset.MustTable(
		dataset.NewCategoricalColumn("gender", []string{"female", "male", "female", "", "male", "female"}),
		dataset.NewNumericColumn("reading_score", []float64{72, 90, nan, 76, 60, 80}),
		dataset.NewCategoricalColumn("lunch", []string{"standard", "free/reduced", "standard", "standard", "free/reduced", ""}),
		dataset.NewNumericColumn("writing_score", []float64{74, 88, 70, 75, 58, 82}),
		dataset.NewNumericColumn("math_score", []float64{72, 69, 65, 76, 55, 80}),
	)
}

func TestBuildPartition(t *testing.T) {
	table := studentTable()
	p, err := Build(table, "math_score")
	require.NoError(t, err)

	assert.Equal(t, []string{"reading_score", "writing_score"}, p.Partition.Numeric)
	assert.Equal(t, []string{"gender", "lunch"}, p.Partition.Categorical)

	// every non-target column appears exactly once
	seen := map[string]int{}
	for _, c := range p.Partition.Columns() {
		seen[c]++
	}
	assert.NotContains(t, seen, "math_score")
	for _, name := range table.Names() {
		if name != "math_score" {
			assert.Equal(t, 1, seen[name], name)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		_, err := Build(studentTable(), "science_score")
		var te *errors.TransformationError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "science_score", te.Column)
	})

	t.Run("ambiguous column", func(t *testing.T) {
		table := dataset.MustTable(
			dataset.InferColumn("mixed", []string{"1", "two", "3"}),
			dataset.NewNumericColumn("y", []float64{1, 2, 3}),
		)
		_, err := Build(table, "y")
		var te *errors.TransformationError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "mixed", te.Column)
	})

	t.Run("unknown scaler", func(t *testing.T) {
		_, err := Build(studentTable(), "math_score", WithScaler("robust"))
		assert.Error(t, err)
	})
}

func TestTransformBeforeFit(t *testing.T) {
	p, err := Build(studentTable(), "math_score")
	require.NoError(t, err)

	_, err = p.Transform(studentTable())
	var te *errors.TransformationError
	require.True(t, errors.As(err, &te))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	var zero Preprocessor
	_, err = zero.Transform(studentTable())
	assert.True(t, errors.As(err, &te))
}

func TestFitRequiresTargetAndRejectsRefit(t *testing.T) {
	table := studentTable()
	p, err := Build(table, "math_score")
	require.NoError(t, err)

	err = p.Fit(table.Drop("math_score"))
	var te *errors.TransformationError
	require.True(t, errors.As(err, &te))

	require.NoError(t, p.Fit(table))
	assert.True(t, errors.As(p.Fit(table), &te), "a fitted pipeline is immutable")
}

func TestFitTransformLayout(t *testing.T) {
	table := studentTable()
	p, err := Build(table, "math_score")
	require.NoError(t, err)
	X, err := p.FitTransform(table)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"reading_score", "writing_score",
		"gender=female", "gender=male",
		"lunch=free/reduced", "lunch=standard",
	}, p.FeatureNames())

	r, c := X.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 6, c)

	// numeric columns are centered and scaled with the population std
	for j := 0; j < 2; j++ {
		col := mat.Col(nil, j, X)
		mean, sq := 0.0, 0.0
		for _, v := range col {
			mean += v
		}
		mean /= float64(len(col))
		for _, v := range col {
			sq += (v - mean) * (v - mean)
		}
		assert.InDelta(t, 0, mean, 1e-12)
		assert.InDelta(t, 1, math.Sqrt(sq/float64(len(col))), 1e-12)
	}

	// row 3 had a missing gender: imputed with the mode "female"
	assert.Equal(t, 1.0, X.At(3, 2))
	assert.Equal(t, 0.0, X.At(3, 3))
	// row 5 had a missing lunch: imputed with the mode "standard"
	assert.Equal(t, 1.0, X.At(5, 5))

	// reading_score median of observed {60,72,76,80,90} is 76; row 2 gets the scaled median
	assert.InDelta(t, X.At(3, 0), X.At(2, 0), 1e-12)
}

func TestTransformUnseenCategory(t *testing.T) {
	table := studentTable()
	p, err := Build(table, "math_score")
	require.NoError(t, err)
	require.NoError(t, p.Fit(table))

	infer := dataset.MustTable(
		dataset.NewCategoricalColumn("gender", []string{"nonbinary"}),
		dataset.NewNumericColumn("reading_score", []float64{70}),
		dataset.NewCategoricalColumn("lunch", []string{"standard"}),
		dataset.NewNumericColumn("writing_score", []float64{70}),
	)
	X, err := p.Transform(infer)
	require.NoError(t, err)

	assert.Equal(t, 0.0, X.At(0, 2), "unseen category encodes as an all-zero block")
	assert.Equal(t, 0.0, X.At(0, 3))
	assert.Equal(t, 1.0, X.At(0, 5))
	for j := 0; j < 6; j++ {
		assert.False(t, math.IsNaN(X.At(0, j)))
	}
}

func TestTransformSchemaMismatch(t *testing.T) {
	table := studentTable()
	p, err := Build(table, "math_score")
	require.NoError(t, err)
	require.NoError(t, p.Fit(table))

	var te *errors.TransformationError

	_, err = p.Transform(table.Drop("lunch"))
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "lunch", te.Column)

	swapped := dataset.MustTable(
		dataset.NewNumericColumn("gender", []float64{1}),
		dataset.NewNumericColumn("reading_score", []float64{70}),
		dataset.NewCategoricalColumn("lunch", []string{"standard"}),
		dataset.NewNumericColumn("writing_score", []float64{70}),
	)
	_, err = p.Transform(swapped)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "gender", te.Column)

	// a column that is entirely missing cannot be typed at load time and is accepted
	allMissing := dataset.MustTable(
		dataset.NewCategoricalColumn("gender", []string{"male"}),
		dataset.InferColumn("reading_score", []string{""}),
		dataset.NewCategoricalColumn("lunch", []string{"standard"}),
		dataset.NewNumericColumn("writing_score", []float64{70}),
	)
	_, err = p.Transform(allMissing)
	assert.NoError(t, err)
}

func TestFitIsDeterministic(t *testing.T) {
	table := studentTable()
	test := table.Subset([]int{4, 1, 0})

	p1, err := Build(table, "math_score")
	require.NoError(t, err)
	require.NoError(t, p1.Fit(table))
	p2, err := Build(table, "math_score")
	require.NoError(t, err)
	require.NoError(t, p2.Fit(table))

	X1, err := p1.Transform(test)
	require.NoError(t, err)
	X2, err := p2.Transform(test)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X1, X2))
}

func TestMinMaxPipeline(t *testing.T) {
	table := studentTable()
	p, err := Build(table, "math_score", WithScaler(ScalerMinMax))
	require.NoError(t, err)
	X, err := p.FitTransform(table)
	require.NoError(t, err)

	col := mat.Col(nil, 1, X)
	for _, v := range col {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
