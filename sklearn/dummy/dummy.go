// Package dummy は入力を見ずに定数を予測するベースライン回帰モデルを提供する。
package dummy

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func init() {
	model.Register("dummy.DummyRegressor", &DummyRegressor{})
}

// 予測戦略
const (
	StrategyMean     = "mean"
	StrategyMedian   = "median"
	StrategyConstant = "constant"
)

// DummyRegressor は学習データの平均（または中央値、指定した定数）を常に予測する。
// 他の候補モデルが上回るべき基準として使う。
type DummyRegressor struct {
	State *model.StateManager

	Strategy string
	Constant float64

	Value float64
}

// NewDummyRegressor は新しいDummyRegressorを作成
func NewDummyRegressor(strategy string) *DummyRegressor {
	return &DummyRegressor{State: model.NewStateManager(), Strategy: strategy}
}

// Fit は予測する定数を求める
func (d *DummyRegressor) Fit(X, y mat.Matrix) error {
	if err := model.OneOf("strategy", d.Strategy, StrategyMean, StrategyMedian, StrategyConstant); err != nil {
		return err
	}
	rows, cols, err := model.CheckXY("DummyRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	target := model.Column(y, 0)
	switch d.Strategy {
	case StrategyMean:
		d.Value = stat.Mean(target, nil)
	case StrategyMedian:
		sort.Float64s(target)
		n := len(target)
		if n%2 == 1 {
			d.Value = target[n/2]
		} else {
			d.Value = (target[n/2-1] + target[n/2]) / 2
		}
	default:
		d.Value = d.Constant
	}
	d.State.SetFitted(cols, rows)
	return nil
}

// Predict は全行に同じ値を返す
func (d *DummyRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := d.State.RequireFitted("DummyRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := d.State.CheckFeatures("DummyRegressor.Predict", cols); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "DummyRegressor.Predict")
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, d.Value)
	}
	return out, nil
}

// Score は決定係数（R²）を返す。平均戦略では学習データ上で常に0になる。
func (d *DummyRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := d.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// GetParams はハイパーパラメータを返す
func (d *DummyRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy": d.Strategy,
		"constant": d.Constant,
	}
}

// SetParams はハイパーパラメータを設定する
func (d *DummyRegressor) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		var err error
		switch name {
		case "strategy":
			d.Strategy, err = model.StringParam(name, v)
		case "constant":
			d.Constant, err = model.FloatParam(name, v)
		default:
			return model.UnknownParam("DummyRegressor", name, v)
		}
		if err != nil {
			return err
		}
	}
	return model.OneOf("strategy", d.Strategy, StrategyMean, StrategyMedian, StrategyConstant)
}

// Clone は同じハイパーパラメータの未学習モデルを返す
func (d *DummyRegressor) Clone() model.Estimator {
	c := NewDummyRegressor(d.Strategy)
	c.Constant = d.Constant
	return c
}

func (d *DummyRegressor) String() string {
	return fmt.Sprintf("DummyRegressor(strategy=%s)", d.Strategy)
}

var _ model.Estimator = (*DummyRegressor)(nil)
