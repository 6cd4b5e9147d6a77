package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う。戻り値は n×1 の行列。
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は回帰アルゴリズムの能力インターフェース。
// 候補モデルはすべてこのインターフェースを満たす。
type Regressor interface {
	Fitter
	Predictor
}

// Estimator はハイパーパラメータ探索の対象になれる回帰モデル。
// Clone は学習済み状態を持たない同じハイパーパラメータの新しいインスタンスを返す。
type Estimator interface {
	Regressor
	ParameterGetter
	ParameterSetter
	Clone() Estimator
}
