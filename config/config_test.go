package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Training.MinScore)
	assert.Equal(t, 3, cfg.Training.Folds)
	assert.Equal(t, 0.2, cfg.Data.TestRatio)
	assert.Equal(t, uint64(42), cfg.Data.Seed)
	assert.Equal(t, filepath.Join("artifacts", "model.gob"), cfg.Artifacts.ModelPath())
	assert.Equal(t, filepath.Join("artifacts", "preprocessor.gob"), cfg.Artifacts.PreprocessorPath())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
data:
  source: data/students.csv
training:
  min_score: 0.5
  workers: 2
candidates:
  Random Forest:
    grid:
      - name: n_estimators
        values: [4, 8]
  AdaBoost Regressor:
    disabled: true
  Ridge:
    params:
      alpha: 0.5
`))
	require.NoError(t, err)

	assert.Equal(t, "data/students.csv", cfg.Data.Source)
	assert.Equal(t, "math_score", cfg.Data.Target, "untouched keys keep their defaults")
	assert.Equal(t, 0.5, cfg.Training.MinScore)
	assert.Equal(t, 2, cfg.Training.Workers)
	assert.Equal(t, 3, cfg.Training.Folds)

	rf := cfg.Candidates["Random Forest"]
	require.Len(t, rf.Grid, 1)
	assert.Equal(t, "n_estimators", rf.Grid[0].Name)
	assert.Equal(t, []interface{}{4, 8}, rf.Grid[0].Values)
	assert.True(t, cfg.Candidates["AdaBoost Regressor"].Disabled)
	assert.Equal(t, 0.5, cfg.Candidates["Ridge"].Params["alpha"])
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"test ratio out of range", "data:\n  test_ratio: 1.5\n"},
		{"one fold", "training:\n  folds: 1\n"},
		{"zero gate", "training:\n  min_score: 0\n"},
		{"unknown scaler", "training:\n  scaler: robust\n"},
		{"empty grid values", "candidates:\n  Ridge:\n    grid:\n      - name: alpha\n        values: []\n"},
		{"bad log level", "log:\n  level: trace\n"},
		{"missing target", "data:\n  target: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("training:\n  min_scor: 0.5\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mathscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("artifacts:\n  dir: /tmp/out\n  model: best.gob\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/out", "best.gob"), cfg.Artifacts.ModelPath())

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestArtifactPathKeepsAbsolute(t *testing.T) {
	a := ArtifactsConfig{Dir: "artifacts"}
	assert.Equal(t, "/srv/model.gob", a.Path("/srv/model.gob"))
	assert.Equal(t, "", a.Path(""))
}
