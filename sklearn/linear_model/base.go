// Package linear_model は線形回帰モデルを提供する。
//
// どちらのモデルも中心化したデータに対する特異値分解（SVD）で係数を求めるため、
// one-hot列のような完全な多重共線性があっても最小ノルム解が得られる。
package linear_model

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// centered は X と y を列平均で中心化したコピーを返す。
// fitIntercept が false の場合は平均を0として扱う。
func centered(X, y mat.Matrix, fitIntercept bool) (Xc *mat.Dense, yc *mat.VecDense, xMean []float64, yMean float64) {
	rows, cols := X.Dims()
	xMean = make([]float64, cols)
	yv := model.Column(y, 0)
	if fitIntercept {
		for j := range xMean {
			xMean[j] = stat.Mean(model.Column(X, j), nil)
		}
		yMean = stat.Mean(yv, nil)
	}

	Xc = mat.NewDense(rows, cols, nil)
	Xc.Apply(func(i, j int, v float64) float64 {
		return v - xMean[j]
	}, X)
	yc = mat.NewVecDense(rows, nil)
	for i, v := range yv {
		yc.SetVec(i, v-yMean)
	}
	return Xc, yc, xMean, yMean
}

// factorize は Xc の薄いSVDを計算する
func factorize(op string, Xc *mat.Dense) (*mat.SVD, error) {
	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return nil, errors.NewModelError(op, "svd", errors.New("singular value decomposition failed to converge"))
	}
	return &svd, nil
}

// solveShrunk は w = V diag(f(s)) Uᵀ y を計算する。
// f(s) が0を返す特異値の成分は解に含めない。
func solveShrunk(svd *mat.SVD, yc *mat.VecDense, f func(s float64) float64) []float64 {
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	uty := mat.NewVecDense(len(s), nil)
	uty.MulVec(u.T(), yc)
	for i := range s {
		uty.SetVec(i, f(s[i])*uty.AtVec(i))
	}

	rows, _ := v.Dims()
	w := mat.NewVecDense(rows, nil)
	w.MulVec(&v, uty)
	return w.RawVector().Data
}

// rcond は数値ランクの判定に使う相対閾値（numpy.linalg.lstsq と同じ）
func rcond(rows, cols int) float64 {
	eps := math.Nextafter(1, 2) - 1
	return eps * float64(max(rows, cols))
}

// predictLinear は X·coef + intercept を n×1 の行列として返す
func predictLinear(X mat.Matrix, coef []float64, intercept float64) mat.Matrix {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	w := mat.NewVecDense(len(coef), coef)
	col := mat.NewVecDense(rows, nil)
	col.MulVec(X, w)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, col.AtVec(i)+intercept)
	}
	return out
}

// interceptOf は中心化した解から切片を復元する
func interceptOf(coef, xMean []float64, yMean float64) float64 {
	b := yMean
	for j, c := range coef {
		b -= c * xMean[j]
	}
	return b
}
