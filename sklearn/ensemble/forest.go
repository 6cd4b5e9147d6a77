// Package ensemble は決定木を組み合わせたアンサンブル回帰モデルを提供する。
package ensemble

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/core/parallel"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	"github.com/YuminosukeSato/mathscore/sklearn/tree"
)

func init() {
	model.Register("ensemble.RandomForestRegressor", &RandomForestRegressor{})
}

// RandomForestRegressor はブートストラップ標本で学習した回帰木の平均で予測する。
// 木ごとの乱数シードは RandomState から順に導出するため、並列に学習しても結果は変わらない。
type RandomForestRegressor struct {
	State *model.StateManager

	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 は全特徴量（scikit-learn の回帰のデフォルト 1.0 と同じ）
	Bootstrap       bool
	RandomState     uint64

	Trees []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor は新しいランダムフォレストを作成
func NewRandomForestRegressor(nEstimators int) *RandomForestRegressor {
	return &RandomForestRegressor{
		State:           model.NewStateManager(),
		NEstimators:     nEstimators,
		Criterion:       tree.CriterionSquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     42,
	}
}

func (f *RandomForestRegressor) template() *tree.DecisionTreeRegressor {
	return tree.NewDecisionTreeRegressor(
		tree.WithCriterion(f.Criterion),
		tree.WithMaxDepth(f.MaxDepth),
		tree.WithMinSamplesSplit(f.MinSamplesSplit),
		tree.WithMinSamplesLeaf(f.MinSamplesLeaf),
		tree.WithMaxFeatures(f.MaxFeatures),
	)
}

// Fit はNEstimators本の木を並列に学習する
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	rows, cols, err := model.CheckXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	columns := tree.ColumnMajor(X)
	target := model.Column(y, 0)

	seeds := make([]uint64, f.NEstimators)
	rng := rand.New(rand.NewPCG(f.RandomState, f.RandomState))
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	trees := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	errs := make([]error, f.NEstimators)
	parallel.Parallelize(f.NEstimators, func(start, end int) {
		for i := start; i < end; i++ {
			t := f.template()
			t.RandomState = seeds[i]
			idx := make([]int, rows)
			if f.Bootstrap {
				r := rand.New(rand.NewPCG(seeds[i], ^seeds[i]))
				for k := range idx {
					idx[k] = r.IntN(rows)
				}
			} else {
				for k := range idx {
					idx[k] = k
				}
			}
			errs[i] = t.FitColumns(columns, target, idx)
			trees[i] = t
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "RandomForestRegressor.Fit: tree %d", i)
		}
	}

	f.Trees = trees
	f.State.SetFitted(cols, rows)
	log.GetLoggerWithName("ensemble.RandomForestRegressor").Debug("RandomForestRegressor fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", f.NEstimators,
	)
	return nil
}

// Predict は全ての木の予測の平均を返す
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := f.State.CheckFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, 256, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			row = model.Row(X, i, row)
			var sum float64
			for _, t := range f.Trees {
				sum += t.PredictRow(row)
			}
			out[i] = sum / float64(len(f.Trees))
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

// Score は決定係数（R²）を返す
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// FeatureImportances は木ごとの重要度の平均を返す
func (f *RandomForestRegressor) FeatureImportances() []float64 {
	if len(f.Trees) == 0 {
		return nil
	}
	out := make([]float64, len(f.Trees[0].FeatureImportances))
	for _, t := range f.Trees {
		for j, v := range t.FeatureImportances {
			out[j] += v / float64(len(f.Trees))
		}
	}
	return out
}

// GetParams はハイパーパラメータを返す
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.NEstimators,
		"criterion":         f.Criterion,
		"max_depth":         f.MaxDepth,
		"min_samples_split": f.MinSamplesSplit,
		"min_samples_leaf":  f.MinSamplesLeaf,
		"max_features":      f.MaxFeatures,
		"bootstrap":         f.Bootstrap,
		"random_state":      int(f.RandomState),
	}
}

// SetParams はハイパーパラメータを設定する
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		var err error
		switch name {
		case "n_estimators":
			f.NEstimators, err = model.IntParam(name, v)
		case "criterion":
			f.Criterion, err = model.StringParam(name, v)
		case "max_depth":
			f.MaxDepth, err = model.IntParam(name, v)
		case "min_samples_split":
			f.MinSamplesSplit, err = model.IntParam(name, v)
		case "min_samples_leaf":
			f.MinSamplesLeaf, err = model.IntParam(name, v)
		case "max_features":
			f.MaxFeatures, err = model.IntParam(name, v)
		case "bootstrap":
			f.Bootstrap, err = model.BoolParam(name, v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(name, v)
			f.RandomState = uint64(seed)
		default:
			return model.UnknownParam("RandomForestRegressor", name, v)
		}
		if err != nil {
			return err
		}
	}
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	return model.OneOf("criterion", f.Criterion,
		tree.CriterionSquaredError, tree.CriterionFriedmanMSE, tree.CriterionAbsoluteError)
}

// Clone は同じハイパーパラメータの未学習モデルを返す
func (f *RandomForestRegressor) Clone() model.Estimator {
	c := NewRandomForestRegressor(f.NEstimators)
	c.Criterion = f.Criterion
	c.MaxDepth = f.MaxDepth
	c.MinSamplesSplit = f.MinSamplesSplit
	c.MinSamplesLeaf = f.MinSamplesLeaf
	c.MaxFeatures = f.MaxFeatures
	c.Bootstrap = f.Bootstrap
	c.RandomState = f.RandomState
	return c
}

func (f *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d, random_state=%d)",
		f.NEstimators, f.MaxDepth, f.RandomState)
}

var _ model.Estimator = (*RandomForestRegressor)(nil)
