// Package config loads the YAML configuration of a training run and of the
// prediction server. A Config is an immutable value: it is loaded once,
// validated, and passed explicitly to each stage.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// Config is the root of the YAML document.
type Config struct {
	Data       DataConfig                 `yaml:"data" validate:"required"`
	Artifacts  ArtifactsConfig            `yaml:"artifacts" validate:"required"`
	Training   TrainingConfig             `yaml:"training" validate:"required"`
	Candidates map[string]CandidateConfig `yaml:"candidates" validate:"omitempty,dive"`
	Serve      ServeConfig                `yaml:"serve" validate:"required"`
	Log        LogConfig                  `yaml:"log" validate:"required"`
}

// DataConfig describes the input table and how it is split.
type DataConfig struct {
	Source    string  `yaml:"source" validate:"required"`
	Target    string  `yaml:"target" validate:"required"`
	TestRatio float64 `yaml:"test_ratio" validate:"gt=0,lt=1"`
	Seed      uint64  `yaml:"seed"`
}

// ArtifactsConfig holds the output locations. Relative file names are
// resolved against Dir.
type ArtifactsConfig struct {
	Dir          string `yaml:"dir" validate:"required"`
	Preprocessor string `yaml:"preprocessor" validate:"required"`
	Model        string `yaml:"model" validate:"required"`
	RawData      string `yaml:"raw_data" validate:"required"`
	TrainData    string `yaml:"train_data" validate:"required"`
	TestData     string `yaml:"test_data" validate:"required"`
	ScoresChart  string `yaml:"scores_chart"`
	RunSummary   string `yaml:"run_summary" validate:"required"`

	// MetricsFile receives the training metrics in the Prometheus text format.
	MetricsFile string `yaml:"metrics_file"`
}

// TrainingConfig tunes evaluation and selection.
type TrainingConfig struct {
	// MinScore is the acceptance gate for the winner's selection score, in (0, 1].
	MinScore float64 `yaml:"min_score" validate:"gt=0,lte=1"`
	Folds    int     `yaml:"folds" validate:"gte=2"`
	Workers  int     `yaml:"workers" validate:"gte=0"`
	Scaler   string  `yaml:"scaler" validate:"oneof=standard minmax"`
}

// CandidateConfig overrides one entry of the default candidate set.
// Params are applied to the estimator before the search; a non-nil Grid
// replaces the default grid (an empty list disables the search).
type CandidateConfig struct {
	Disabled bool                   `yaml:"disabled"`
	Params   map[string]interface{} `yaml:"params"`
	Grid     []GridParam            `yaml:"grid" validate:"omitempty,dive"`
}

// GridParam is one searched hyperparameter.
type GridParam struct {
	Name   string        `yaml:"name" validate:"required"`
	Values []interface{} `yaml:"values" validate:"min=1"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr string `yaml:"addr" validate:"required"`
	Mode string `yaml:"mode" validate:"oneof=debug release test"`
}

// LogConfig configures the process-wide logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Data: DataConfig{
			Source:    "notebook/data/stud.csv",
			Target:    "math_score",
			TestRatio: 0.2,
			Seed:      42,
		},
		Artifacts: ArtifactsConfig{
			Dir:          "artifacts",
			Preprocessor: "preprocessor.gob",
			Model:        "model.gob",
			RawData:      "data.csv",
			TrainData:    "train.csv",
			TestData:     "test.csv",
			ScoresChart:  "scores.png",
			RunSummary:   "run.json",
			MetricsFile:  "metrics.prom",
		},
		Training: TrainingConfig{
			MinScore: 0.7,
			Folds:    3,
			Scaler:   "standard",
		},
		Serve: ServeConfig{Addr: ":5000", Mode: "release"},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads path on top of Default and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}
	return Parse(raw)
}

// Parse decodes a YAML document on top of Default. Unknown keys are rejected.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	return cfg, cfg.Validate()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return errors.NewValidationError(f.Namespace(), "failed on the '"+f.Tag()+"' rule", f.Value())
		}
		return errors.Wrap(err, "config: validate")
	}
	return nil
}

// Path resolves an artifact file name against Dir. Absolute names are kept.
func (a ArtifactsConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.Dir, name)
}

// PreprocessorPath is the resolved path of the fitted preprocessor.
func (a ArtifactsConfig) PreprocessorPath() string { return a.Path(a.Preprocessor) }

// ModelPath is the resolved path of the selected model.
func (a ArtifactsConfig) ModelPath() string { return a.Path(a.Model) }
