package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func init() {
	model.Register("linear_model.Ridge", &Ridge{})
}

var errNegativeAlpha = errors.New("alpha must be non-negative")

// Ridge はL2正則化付きの線形回帰
//
//	minimize ||y - Xw||² + alpha * ||w||²
//
// 切片は正則化しない。alpha=0 のときは LinearRegression と同じ最小ノルム解になる。
type Ridge struct {
	State *model.StateManager

	Alpha        float64
	FitIntercept bool

	Coef      []float64
	Intercept float64
}

// NewRidge は新しいRidgeモデルを作成
func NewRidge(alpha float64) *Ridge {
	return &Ridge{State: model.NewStateManager(), Alpha: alpha, FitIntercept: true}
}

// Fit はモデルを訓練データで学習
func (r *Ridge) Fit(X, y mat.Matrix) error {
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", errNegativeAlpha.Error(), r.Alpha)
	}
	rows, cols, err := model.CheckXY("Ridge.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centered(X, y, r.FitIntercept)
	svd, err := factorize("Ridge.Fit", Xc)
	if err != nil {
		return err
	}
	values := svd.Values(nil)
	cutoff := 0.0
	if len(values) > 0 {
		cutoff = rcond(rows, cols) * values[0]
	}

	// w = V diag(s / (s² + alpha)) Uᵀ y
	coef := solveShrunk(svd, yc, func(s float64) float64 {
		if s <= cutoff {
			return 0
		}
		return s / (s*s + r.Alpha)
	})

	r.Coef = coef
	r.Intercept = 0
	if r.FitIntercept {
		r.Intercept = interceptOf(coef, xMean, yMean)
	}
	r.State.SetFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := r.State.RequireFitted("Ridge", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := r.State.CheckFeatures("Ridge.Predict", cols); err != nil {
		return nil, err
	}
	return predictLinear(X, r.Coef, r.Intercept), nil
}

// Score はモデルの決定係数（R²）を計算
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, predictions)
}

// GetParams returns the model's hyperparameters
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.Alpha,
		"fit_intercept": r.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters
func (r *Ridge) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		switch name {
		case "alpha":
			a, err := model.FloatParam(name, v)
			if err != nil {
				return err
			}
			if a < 0 {
				return errors.NewValidationError(name, errNegativeAlpha.Error(), a)
			}
			r.Alpha = a
		case "fit_intercept":
			b, err := model.BoolParam(name, v)
			if err != nil {
				return err
			}
			r.FitIntercept = b
		default:
			return model.UnknownParam("Ridge", name, v)
		}
	}
	return nil
}

// Clone は同じハイパーパラメータの未学習モデルを返す
func (r *Ridge) Clone() model.Estimator {
	c := NewRidge(r.Alpha)
	c.FitIntercept = r.FitIntercept
	return c
}

func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t)", r.Alpha, r.FitIntercept)
}

var _ model.Estimator = (*Ridge)(nil)
