// Package neighbors は k 近傍法による回帰モデルを提供する。
package neighbors

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/core/parallel"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func init() {
	model.Register("neighbors.KNeighborsRegressor", &KNeighborsRegressor{})
}

// 近傍の重み付け
const (
	WeightsUniform  = "uniform"
	WeightsDistance = "distance"
)

// KNeighborsRegressor は距離が近い NNeighbors 個の学習標本の目的変数の（重み付き）平均で予測する。
// 距離はミンコフスキー距離で、P=2 がユークリッド距離。
// 距離が同じ近傍は学習データでの順序が早いものを優先する。
type KNeighborsRegressor struct {
	State *model.StateManager

	NNeighbors int
	Weights    string
	P          float64

	// 学習データ（行優先）
	XTrain []float64
	YTrain []float64
}

// NewKNeighborsRegressor は新しいKNeighborsRegressorを作成
func NewKNeighborsRegressor(nNeighbors int) *KNeighborsRegressor {
	return &KNeighborsRegressor{
		State:      model.NewStateManager(),
		NNeighbors: nNeighbors,
		Weights:    WeightsUniform,
		P:          2,
	}
}

func (k *KNeighborsRegressor) validate() error {
	if k.NNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", k.NNeighbors)
	}
	if k.P < 1 {
		return errors.NewValidationError("p", "must be >= 1", k.P)
	}
	return model.OneOf("weights", k.Weights, WeightsUniform, WeightsDistance)
}

// Fit は学習データを保持する
func (k *KNeighborsRegressor) Fit(X, y mat.Matrix) error {
	if err := k.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXY("KNeighborsRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	k.XTrain = make([]float64, 0, rows*cols)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row = model.Row(X, i, row)
		k.XTrain = append(k.XTrain, row...)
	}
	k.YTrain = model.Column(y, 0)
	k.State.SetFitted(cols, rows)
	return nil
}

// Predict は各行について近傍の目的変数の平均を返す。行ごとに独立なので並列に計算する。
func (k *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := k.State.RequireFitted("KNeighborsRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := k.State.CheckFeatures("KNeighborsRegressor.Predict", cols); err != nil {
		return nil, err
	}
	nTrain := len(k.YTrain)
	if k.NNeighbors > nTrain {
		return nil, errors.NewValueError("KNeighborsRegressor.Predict",
			fmt.Sprintf("expected n_neighbors <= n_samples_fit, got n_neighbors=%d, n_samples_fit=%d", k.NNeighbors, nTrain))
	}

	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, 64, func(start, end int) {
		row := make([]float64, cols)
		dist := make([]float64, nTrain)
		order := make([]int, nTrain)
		for i := start; i < end; i++ {
			row = model.Row(X, i, row)
			for t := 0; t < nTrain; t++ {
				dist[t] = floats.Distance(row, k.XTrain[t*cols:(t+1)*cols], k.P)
				order[t] = t
			}
			sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })
			out[i] = k.aggregate(order[:k.NNeighbors], dist)
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

// aggregate は近傍の目的変数を平均する。distance 重みで距離0の近傍があれば、それらだけの平均を返す。
func (k *KNeighborsRegressor) aggregate(neighbors []int, dist []float64) float64 {
	if k.Weights == WeightsUniform {
		var sum float64
		for _, t := range neighbors {
			sum += k.YTrain[t]
		}
		return sum / float64(len(neighbors))
	}

	var exact, nExact float64
	for _, t := range neighbors {
		if dist[t] == 0 {
			exact += k.YTrain[t]
			nExact++
		}
	}
	if nExact > 0 {
		return exact / nExact
	}
	var num, den float64
	for _, t := range neighbors {
		w := 1 / dist[t]
		num += w * k.YTrain[t]
		den += w
	}
	if den == 0 || math.IsInf(den, 0) {
		return k.YTrain[neighbors[0]]
	}
	return num / den
}

// Score は決定係数（R²）を返す
func (k *KNeighborsRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := k.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// GetParams はハイパーパラメータを返す
func (k *KNeighborsRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": k.NNeighbors,
		"weights":     k.Weights,
		"p":           k.P,
	}
}

// SetParams はハイパーパラメータを設定する
func (k *KNeighborsRegressor) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		var err error
		switch name {
		case "n_neighbors":
			k.NNeighbors, err = model.IntParam(name, v)
		case "weights":
			k.Weights, err = model.StringParam(name, v)
		case "p":
			k.P, err = model.FloatParam(name, v)
		default:
			return model.UnknownParam("KNeighborsRegressor", name, v)
		}
		if err != nil {
			return err
		}
	}
	return k.validate()
}

// Clone は同じハイパーパラメータの未学習モデルを返す
func (k *KNeighborsRegressor) Clone() model.Estimator {
	c := NewKNeighborsRegressor(k.NNeighbors)
	c.Weights = k.Weights
	c.P = k.P
	return c
}

func (k *KNeighborsRegressor) String() string {
	return fmt.Sprintf("KNeighborsRegressor(n_neighbors=%d, weights=%s, p=%g)", k.NNeighbors, k.Weights, k.P)
}

var _ model.Estimator = (*KNeighborsRegressor)(nil)
