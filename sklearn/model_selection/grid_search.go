package model_selection

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
)

// CVResult は1つのパラメータの組み合わせの交差検証結果
type CVResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
	StdScore   float64
}

// GridSearchResult はグリッドサーチ全体の結果。Results は組み合わせの順序と同じ。
type GridSearchResult struct {
	Results    []CVResult
	BestIndex  int
	BestParams map[string]interface{}
	BestScore  float64

	// BestEstimator は Refit=true のときだけ設定される
	BestEstimator model.Estimator
}

// GridSearchCV は格子の全ての組み合わせを交差検証のR²平均で評価する。
//
// 組み合わせ×foldの各学習は独立なので errgroup で並列に実行し、
// スコアは添字で書き込む。並列度によってスコアや最良の組み合わせは変わらない。
// 平均スコアが同点の場合は先に現れた組み合わせを選ぶ。
type GridSearchCV struct {
	Estimator model.Estimator
	Grid      ParamGrid
	CV        Splitter

	// Workers は同時に実行する学習の数（0以下は GOMAXPROCS）
	Workers int

	// Refit が true なら最良の組み合わせで学習データ全体に学習し直す
	Refit bool
}

// NewGridSearchCV はデフォルトの3分割（シャッフルなし）で GridSearchCV を作成する
func NewGridSearchCV(estimator model.Estimator, grid ParamGrid) *GridSearchCV {
	return &GridSearchCV{
		Estimator: estimator,
		Grid:      grid,
		CV:        NewKFold(3, false, 0),
	}
}

type foldData struct {
	Xtr, ytr, Xte, yte *mat.Dense
}

// Fit は探索を実行する。いずれかの学習が失敗すると残りを取り消して最初のエラーを返す。
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) (*GridSearchResult, error) {
	if gs.Estimator == nil {
		return nil, errors.NewValueError("GridSearchCV.Fit", "estimator is nil")
	}
	if err := gs.Grid.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := model.CheckXY("GridSearchCV.Fit", X, y); err != nil {
		return nil, err
	}

	folds, err := gs.CV.Split(X)
	if err != nil {
		return nil, err
	}
	data := make([]foldData, len(folds))
	for f, fold := range folds {
		Xtr, ytr := Subset(X, y, fold.TrainIndices)
		Xte, yte := Subset(X, y, fold.TestIndices)
		data[f] = foldData{Xtr, ytr, Xte, yte}
	}

	combos := gs.Grid.Combinations()
	scores := make([][]float64, len(combos))
	for c := range scores {
		scores[c] = make([]float64, len(folds))
	}

	logger := log.GetLoggerWithName("model_selection.GridSearchCV")
	logger.Debug("Grid search started",
		log.ModelNameKey, fmt.Sprintf("%T", gs.Estimator),
		log.CombinationsKey, len(combos),
		"folds", len(folds),
	)

	workers := gs.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for c := range combos {
		for f := range folds {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := fitAndScore(gs.Estimator, combos[c], data[f])
				if err != nil {
					return errors.Wrapf(err, "params %v, fold %d", combos[c], f)
				}
				scores[c][f] = s
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &GridSearchResult{Results: make([]CVResult, len(combos)), BestScore: math.Inf(-1)}
	for c, combo := range combos {
		mean := stat.Mean(scores[c], nil)
		result.Results[c] = CVResult{
			Params:     combo,
			FoldScores: scores[c],
			MeanScore:  mean,
			StdScore:   math.Sqrt(stat.PopVariance(scores[c], nil)),
		}
		if mean > result.BestScore {
			result.BestIndex, result.BestScore = c, mean
		}
	}
	result.BestParams = combos[result.BestIndex]

	if gs.Refit {
		best, err := Configure(gs.Estimator, result.BestParams)
		if err != nil {
			return nil, err
		}
		if err := errors.SafeExecute("GridSearchCV.refit", func() error { return best.Fit(X, y) }); err != nil {
			return nil, err
		}
		result.BestEstimator = best
	}

	logger.Debug("Grid search finished",
		log.HyperParamsKey, result.BestParams,
		log.R2ScoreKey, result.BestScore,
	)
	return result, nil
}

// Configure は estimator の未学習のクローンに params を設定して返す
func Configure(estimator model.Estimator, params map[string]interface{}) (model.Estimator, error) {
	clone := estimator.Clone()
	if len(params) > 0 {
		if err := clone.SetParams(params); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

func fitAndScore(estimator model.Estimator, params map[string]interface{}, d foldData) (score float64, err error) {
	err = errors.SafeExecute("GridSearchCV.fit", func() error {
		est, err := Configure(estimator, params)
		if err != nil {
			return err
		}
		if err := est.Fit(d.Xtr, d.ytr); err != nil {
			return err
		}
		pred, err := est.Predict(d.Xte)
		if err != nil {
			return err
		}
		score, err = metrics.R2Score(d.yte, pred)
		return err
	})
	return score, err
}

// CrossValScore は estimator の各foldのR²を返す（scikit-learn の cross_val_score）
func CrossValScore(ctx context.Context, estimator model.Estimator, X, y mat.Matrix, cv Splitter) ([]float64, error) {
	gs := &GridSearchCV{Estimator: estimator, CV: cv, Workers: 1}
	res, err := gs.Fit(ctx, X, y)
	if err != nil {
		return nil, err
	}
	return res.Results[0].FoldScores, nil
}
