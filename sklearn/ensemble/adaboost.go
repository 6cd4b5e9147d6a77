package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	"github.com/YuminosukeSato/mathscore/sklearn/tree"
)

func init() {
	model.Register("ensemble.AdaBoostRegressor", &AdaBoostRegressor{})
}

// AdaBoost.R2 の損失関数
const (
	LossLinear      = "linear"
	LossSquare      = "square"
	LossExponential = "exponential"
)

// AdaBoostRegressor は Drucker (1997) の AdaBoost.R2 を実装する。
//
// 各段で標本の重みに比例した復元抽出を行って木を学習し、
// 正規化した誤差から推定器の重みを決める。予測は推定器の重み付き中央値。
type AdaBoostRegressor struct {
	State *model.StateManager

	NEstimators  int
	LearningRate float64
	Loss         string
	MaxDepth     int // 基本推定器（回帰木）の深さ
	RandomState  uint64

	Estimators       []*tree.DecisionTreeRegressor
	EstimatorWeights []float64
	EstimatorErrors  []float64
}

// NewAdaBoostRegressor は scikit-learn と同じデフォルト値で作成する
func NewAdaBoostRegressor() *AdaBoostRegressor {
	return &AdaBoostRegressor{
		State:        model.NewStateManager(),
		NEstimators:  50,
		LearningRate: 1.0,
		Loss:         LossLinear,
		MaxDepth:     3,
		RandomState:  42,
	}
}

func (a *AdaBoostRegressor) validate() error {
	if a.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", a.NEstimators)
	}
	if a.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be > 0", a.LearningRate)
	}
	return model.OneOf("loss", a.Loss, LossLinear, LossSquare, LossExponential)
}

// Fit はブースティングを実行する。推定器の誤差が0になった段、
// または0.5以上になった段で打ち切る（後者の推定器は最初の1本でなければ捨てる）。
func (a *AdaBoostRegressor) Fit(X, y mat.Matrix) error {
	if err := a.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXY("AdaBoostRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	columns := tree.ColumnMajor(X)
	target := model.Column(y, 0)
	rng := rand.New(rand.NewPCG(a.RandomState, a.RandomState))

	weights := make([]float64, rows)
	for i := range weights {
		weights[i] = 1 / float64(rows)
	}
	a.Estimators, a.EstimatorWeights, a.EstimatorErrors = nil, nil, nil

	errVec := make([]float64, rows)
	cdf := make([]float64, rows)
	row := make([]float64, cols)

	for m := 0; m < a.NEstimators; m++ {
		// 重みに比例した復元抽出
		floats.CumSum(cdf, weights)
		total := cdf[rows-1]
		idx := make([]int, rows)
		for k := range idx {
			u := rng.Float64() * total
			idx[k] = min(sort.SearchFloat64s(cdf, u), rows-1)
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(a.MaxDepth),
			tree.WithRandomState(rng.Uint64()),
		)
		if err := t.FitColumns(columns, target, idx); err != nil {
			return errors.Wrapf(err, "AdaBoostRegressor.Fit: stage %d", m)
		}

		for i := 0; i < rows; i++ {
			for j := range row {
				row[j] = columns[j][i]
			}
			errVec[i] = math.Abs(t.PredictRow(row) - target[i])
		}
		if maxErr := floats.Max(errVec); maxErr > 0 {
			floats.Scale(1/maxErr, errVec)
		}
		switch a.Loss {
		case LossSquare:
			floats.Mul(errVec, errVec)
		case LossExponential:
			for i, e := range errVec {
				errVec[i] = 1 - math.Exp(-e)
			}
		}
		estErr := floats.Dot(weights, errVec)

		if estErr <= 0 {
			// 完全に当てはまった: この推定器だけで十分
			a.push(t, 1, 0)
			break
		}
		if estErr >= 0.5 {
			if len(a.Estimators) == 0 {
				a.push(t, 1, estErr)
			}
			break
		}

		beta := estErr / (1 - estErr)
		a.push(t, a.LearningRate*math.Log(1/beta), estErr)

		if m < a.NEstimators-1 {
			for i := range weights {
				weights[i] *= math.Pow(beta, (1-errVec[i])*a.LearningRate)
			}
			floats.Scale(1/floats.Sum(weights), weights)
		}
	}

	a.State.SetFitted(cols, rows)
	log.GetLoggerWithName("ensemble.AdaBoostRegressor").Debug("AdaBoostRegressor fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		"n_estimators", len(a.Estimators),
	)
	return nil
}

func (a *AdaBoostRegressor) push(t *tree.DecisionTreeRegressor, weight, estErr float64) {
	a.Estimators = append(a.Estimators, t)
	a.EstimatorWeights = append(a.EstimatorWeights, weight)
	a.EstimatorErrors = append(a.EstimatorErrors, estErr)
}

// Predict は推定器の予測の重み付き中央値を返す
func (a *AdaBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := a.State.RequireFitted("AdaBoostRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := a.State.CheckFeatures("AdaBoostRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	preds := make([]float64, len(a.Estimators))
	order := make([]int, len(a.Estimators))
	for i := 0; i < rows; i++ {
		row = model.Row(X, i, row)
		for k, t := range a.Estimators {
			preds[k] = t.PredictRow(row)
			order[k] = k
		}
		out.Set(i, 0, weightedMedian(preds, a.EstimatorWeights, order))
	}
	return out, nil
}

// weightedMedian は累積重みが全体の半分以上になる最初の予測値を返す
func weightedMedian(values, weights []float64, order []int) float64 {
	sort.SliceStable(order, func(i, j int) bool { return values[order[i]] < values[order[j]] })
	half := floats.Sum(weights) / 2
	var acc float64
	for _, k := range order {
		acc += weights[k]
		if acc >= half {
			return values[k]
		}
	}
	return values[order[len(order)-1]]
}

// Score は決定係数（R²）を返す
func (a *AdaBoostRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := a.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// GetParams はハイパーパラメータを返す
func (a *AdaBoostRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  a.NEstimators,
		"learning_rate": a.LearningRate,
		"loss":          a.Loss,
		"max_depth":     a.MaxDepth,
		"random_state":  int(a.RandomState),
	}
}

// SetParams はハイパーパラメータを設定する
func (a *AdaBoostRegressor) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		var err error
		switch name {
		case "n_estimators":
			a.NEstimators, err = model.IntParam(name, v)
		case "learning_rate":
			a.LearningRate, err = model.FloatParam(name, v)
		case "loss":
			a.Loss, err = model.StringParam(name, v)
		case "max_depth":
			a.MaxDepth, err = model.IntParam(name, v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(name, v)
			a.RandomState = uint64(seed)
		default:
			return model.UnknownParam("AdaBoostRegressor", name, v)
		}
		if err != nil {
			return err
		}
	}
	return a.validate()
}

// Clone は同じハイパーパラメータの未学習モデルを返す
func (a *AdaBoostRegressor) Clone() model.Estimator {
	c := NewAdaBoostRegressor()
	c.NEstimators = a.NEstimators
	c.LearningRate = a.LearningRate
	c.Loss = a.Loss
	c.MaxDepth = a.MaxDepth
	c.RandomState = a.RandomState
	return c
}

func (a *AdaBoostRegressor) String() string {
	return fmt.Sprintf("AdaBoostRegressor(n_estimators=%d, learning_rate=%g, loss=%s)",
		a.NEstimators, a.LearningRate, a.Loss)
}

var _ model.Estimator = (*AdaBoostRegressor)(nil)
