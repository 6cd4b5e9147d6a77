// Standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so log records from every stage can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "LinearRegression", "StandardScaler", "RandomForestRegressor"
	ModelNameKey = "model.name"

	// CandidateKey is the name of a candidate in the model-selection set.
	// Examples: "Linear Regression", "Random Forest"
	CandidateKey = "candidate.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"

	// StageKey is the pipeline stage: ingestion, transformation, evaluation,
	// selection, persistence, inference.
	StageKey = "pipeline.stage"

	// RunIDKey identifies one training run.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// ColumnKey names a single column of the feature table.
	ColumnKey = "data.column"

	// PathKey is a filesystem path of an input table or an artifact.
	PathKey = "data.path"
)

// Performance Metrics
const (
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// TestScoreKey records the held-out R² of the refit winner.
	TestScoreKey = "metrics.test_r2_score"

	// FoldKey is the index of a cross-validation fold.
	FoldKey = "cv.fold"

	// CombinationsKey is the size of an expanded hyperparameter grid.
	CombinationsKey = "cv.combinations"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error Context
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// MinScoreKey is the acceptance gate applied during selection.
	MinScoreKey = "config.min_score"
)

// Standard attribute value constants for common operations.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
