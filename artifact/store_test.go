package artifact

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/dataset"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/preprocessing"
	"github.com/YuminosukeSato/mathscore/sklearn/linear_model"
)

func trainTable() *dataset.Table {
	return dataset.MustTable(
		dataset.NewCategoricalColumn("gender", []string{"female", "male", "", "male", "female", "male"}),
		dataset.NewNumericColumn("reading_score", []float64{72, 90, math.NaN(), 60, 80, 66}),
		dataset.NewNumericColumn("writing_score", []float64{74, 88, 70, 58, 82, 61}),
		dataset.NewNumericColumn("math_score", []float64{72, 69, 65, 55, 80, 58}),
	)
}

func assertNoFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	table := trainTable()
	pre, err := preprocessing.Build(table, "math_score")
	require.NoError(t, err)
	X, err := pre.FitTransform(table)
	require.NoError(t, err)
	y, err := table.Target("math_score")
	require.NoError(t, err)
	lr := linear_model.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	dir := t.TempDir()
	store := NewStore()
	prePath := filepath.Join(dir, "nested", "preprocessor.gob")
	modelPath := filepath.Join(dir, "nested", "model.gob")
	require.NoError(t, store.Save(prePath, pre))
	require.NoError(t, store.Save(modelPath, lr))

	pre2, err := store.LoadPreprocessor(prePath)
	require.NoError(t, err)
	reg, err := store.LoadRegressor(modelPath)
	require.NoError(t, err)

	sample := table.Subset([]int{2, 0, 5})
	X1, err := pre.Transform(sample)
	require.NoError(t, err)
	X2, err := pre2.Transform(sample)
	require.NoError(t, err)
	assert.True(t, mat.Equal(X1, X2), "transform output matches bit for bit")

	p1, err := lr.Predict(X1)
	require.NoError(t, err)
	p2, err := reg.Predict(X2)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1, p2), "predictions match bit for bit")
}

func TestSaveOverwritesWholesale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gob")
	store := NewStore()

	first := linear_model.NewRidge(1)
	require.NoError(t, store.Save(path, first))
	second := linear_model.NewRidge(5)
	require.NoError(t, store.Save(path, second))

	obj, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5.0, obj.(*linear_model.Ridge).Alpha)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestSaveFailureLeavesNothing(t *testing.T) {
	type unregistered struct{ A int }
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gob")

	err := NewStore().Save(path, &unregistered{A: 1})
	var pe *errors.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "save", pe.Op)
	assert.Equal(t, errors.StagePersistence, mustStage(t, err))
	assertNoFiles(t, dir)
}

func TestStageCommitDiscard(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()

	kept := filepath.Join(dir, "kept.gob")
	p, err := store.Stage(kept, linear_model.NewRidge(1))
	require.NoError(t, err)
	_, err = os.Stat(kept)
	assert.True(t, os.IsNotExist(err), "staging does not touch the destination")
	require.NoError(t, p.Commit())
	assert.FileExists(t, kept)
	assert.Error(t, p.Commit())
	assert.NoError(t, p.Discard(), "discard after commit is a no-op")

	dropped := filepath.Join(dir, "dropped.gob")
	p, err = store.Stage(dropped, linear_model.NewRidge(1))
	require.NoError(t, err)
	require.NoError(t, p.Discard())
	assert.NoFileExists(t, dropped)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadFailures(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	var pe *errors.PersistenceError

	_, err := store.Load(filepath.Join(dir, "missing.gob"))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "load", pe.Op)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	garbage := filepath.Join(dir, "garbage.gob")
	require.NoError(t, os.WriteFile(garbage, []byte("not a gob stream"), 0o644))
	_, err = store.Load(garbage)
	assert.True(t, errors.As(err, &pe))

	modelPath := filepath.Join(dir, "model.gob")
	require.NoError(t, store.Save(modelPath, linear_model.NewRidge(1)))
	_, err = store.LoadPreprocessor(modelPath)
	require.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, errors.ErrUnknownArtifact))
}

func mustStage(t *testing.T, err error) errors.Stage {
	t.Helper()
	stage, ok := errors.StageOf(err)
	require.True(t, ok)
	return stage
}
