package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/training"
)

func sampleReport() *training.Report {
	return &training.Report{Entries: []training.ReportEntry{
		{Name: "ConstantMean", Score: -0.01, Params: map[string]interface{}{}},
		{Name: "Linear Regression", Score: 0.88, Params: map[string]interface{}{}},
		{Name: "Random Forest", Score: 0.85, Params: map[string]interface{}{"n_estimators": 64},
			CrossValidated: true, FoldScores: []float64{0.84, 0.86, 0.85}},
		{Name: "Broken", Score: math.NaN(), Params: map[string]interface{}{}},
	}}
}

func TestRenderScores(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scores.png", "nested/scores.svg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, RenderScores(sampleReport(), 0.7, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	assert.Error(t, RenderScores(&training.Report{}, 0.7, filepath.Join(dir, "empty.png")))
	assert.Error(t, RenderScores(sampleReport(), 0.7, filepath.Join(dir, "scores.unknown")))
}

func TestWriteSummary(t *testing.T) {
	res := &training.Result{
		RunID:            "run-1",
		BestName:         "Linear Regression",
		BestParams:       map[string]interface{}{},
		SelectionScore:   0.88,
		TestScore:        0.87,
		TestMetrics:      metrics.Scores{R2: 0.87, MSE: 29.1, RMSE: 5.39, MAE: 4.2},
		Report:           sampleReport(),
		PreprocessorPath: "artifacts/preprocessor.gob",
		ModelPath:        "artifacts/model.gob",
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, res))
	out := buf.String()

	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "0.8700")
	assert.Contains(t, out, "3-fold CV")

	table := out[strings.Index(out, "RANK"):]
	lr := strings.Index(table, "Linear Regression")
	rf := strings.Index(table, "Random Forest")
	cm := strings.Index(table, "ConstantMean")
	nan := strings.Index(table, "Broken")
	require.True(t, lr >= 0 && rf >= 0 && cm >= 0 && nan >= 0, out)
	assert.True(t, lr < rf && rf < cm && cm < nan)

	assert.Error(t, WriteSummary(&buf, nil))
}
