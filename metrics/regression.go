// Package metrics は回帰モデルの評価指標を提供する。
// すべての関数は n×1 の列ベクトル（mat.Matrix）を受け取る。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// columns は yTrue と yPred を検証してスライスとして取り出す
func columns(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rPred != rTrue {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	t := make([]float64, rTrue)
	p := make([]float64, rTrue)
	for i := range t {
		t[i] = yTrue.At(i, 0)
		p[i] = yPred.At(i, 0)
	}
	return t, p, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range t {
		diff := t[i] - p[i]
		sum += diff * diff
	}
	return sum / float64(len(t)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred mat.Matrix) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range t {
		sum += math.Abs(t[i] - p[i])
	}
	return sum / float64(len(t)), nil
}

// R2Score は決定係数（R²）を計算する
//
// 完全な予測で1.0、常に平均を予測するモデルで0.0、それより悪ければ負になる。
// yTrue が定数（全変動が0）の場合、予測が完全なら1.0、そうでなければ0.0を返し、
// UndefinedMetricWarning を出す（scikit-learn の force_finite=True と同じ）。
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columns("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for _, v := range t {
		yMean += v
	}
	yMean /= float64(len(t))

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range t {
		tss += (t[i] - yMean) * (t[i] - yMean)
		rss += (t[i] - p[i]) * (t[i] - p[i])
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2_score", "constant y_true", result))
		return result, nil
	}
	return 1 - rss/tss, nil
}

// Scores はホールドアウト評価でまとめて計算する指標
type Scores struct {
	R2   float64 `json:"r2"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// Regression はR²、MSE、RMSE、MAEをまとめて計算する
func Regression(yTrue, yPred mat.Matrix) (Scores, error) {
	var s Scores
	var err error
	if s.R2, err = R2Score(yTrue, yPred); err != nil {
		return Scores{}, err
	}
	if s.MSE, err = MSE(yTrue, yPred); err != nil {
		return Scores{}, err
	}
	s.RMSE = math.Sqrt(s.MSE)
	if s.MAE, err = MAE(yTrue, yPred); err != nil {
		return Scores{}, err
	}
	return s, nil
}
