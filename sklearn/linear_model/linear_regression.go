package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/log"
)

func init() {
	model.Register("linear_model.LinearRegression", &LinearRegression{})
}

// LinearRegression is a linear regression model using ordinary least squares.
// Compatible with scikit-learn's LinearRegression: rank-deficient designs
// get the minimum-norm solution.
type LinearRegression struct {
	State *model.StateManager

	// Hyperparameters
	FitIntercept bool

	// Learned parameters
	Coef      []float64
	Intercept float64

	// Diagnostics
	Rank           int
	SingularValues []float64
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := centered(X, y, lr.FitIntercept)
	svd, err := factorize("LinearRegression.Fit", Xc)
	if err != nil {
		return err
	}
	values := svd.Values(nil)

	// 最大特異値に対する相対閾値以下の成分は捨てる（最小ノルム解）
	cutoff := 0.0
	if len(values) > 0 {
		cutoff = rcond(rows, cols) * values[0]
	}
	rank := 0
	coef := solveShrunk(svd, yc, func(s float64) float64 {
		if s <= cutoff {
			return 0
		}
		rank++
		return 1 / s
	})

	lr.Coef = coef
	lr.Intercept = 0
	if lr.FitIntercept {
		lr.Intercept = interceptOf(coef, xMean, yMean)
	}
	lr.Rank = rank
	lr.SingularValues = values
	lr.State.SetFitted(cols, rows)

	log.GetLoggerWithName("linear_model.LinearRegression").Debug("LinearRegression fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"rank", rank,
	)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := lr.State.CheckFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}
	return predictLinear(X, lr.Coef, lr.Intercept), nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, predictions)
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		switch name {
		case "fit_intercept":
			b, err := model.BoolParam(name, v)
			if err != nil {
				return err
			}
			lr.FitIntercept = b
		default:
			return model.UnknownParam("LinearRegression", name, v)
		}
	}
	return nil
}

// Clone はモデルの新しいインスタンスを作成（同じハイパーパラメータ、未学習）
func (lr *LinearRegression) Clone() model.Estimator {
	return NewLinearRegression(WithLRFitIntercept(lr.FitIntercept))
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if lr.State == nil || !lr.State.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
	}
	nFeatures, _ := lr.State.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d)",
		lr.FitIntercept, nFeatures, lr.Rank)
}

var _ model.Estimator = (*LinearRegression)(nil)
