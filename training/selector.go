package training

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	ms "github.com/YuminosukeSato/mathscore/sklearn/model_selection"
)

// DefaultMinScore は選択の合格ライン
const DefaultMinScore = 0.7

// Saver はモデルの保存先。artifact.Store が満たす。
type Saver interface {
	Save(path string, obj interface{}) error
}

// SelectorConfig は Selector の設定
type SelectorConfig struct {
	// MinScore が0なら DefaultMinScore を使う
	MinScore float64

	// ModelPath が空なら保存しない
	ModelPath string
}

// Selection は選択の結果
type Selection struct {
	Name   string
	Params map[string]interface{}
	Model  model.Estimator

	// SelectionScore は順位付けに使ったスコア、TestScore は学習し直したモデルのテスト分割R²
	SelectionScore float64
	TestScore      float64
	TestMetrics    metrics.Scores
}

// Selector は評価レポートから最良の候補を選び、学習し直して保存する
type Selector struct {
	Config SelectorConfig
	Store  Saver
	logger log.Logger
}

// NewSelector は新しい Selector を作成する
func NewSelector(cfg SelectorConfig, store Saver) *Selector {
	if cfg.MinScore == 0 {
		cfg.MinScore = DefaultMinScore
	}
	return &Selector{Config: cfg, Store: store, logger: log.GetLoggerWithName("training.selector")}
}

// Rank はスコアの降順に並べた結果を返す。同点は元の順序（候補名の順）を保つ。
// NaN のスコアは最後に置く。
func Rank(report *Report) []ReportEntry {
	ranked := append([]ReportEntry(nil), report.Entries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Score, ranked[j].Score
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return ranked
}

// Select は最良の候補を選ぶ。
//
// 最良のスコアが MinScore 未満なら NoAcceptableModelError を返し、何も書き込まない。
// そうでなければ選ばれたパラメータで学習分割全体に学習し直し、テスト分割のR²を計算してから
// ModelPath に保存する。
func (s *Selector) Select(report *Report, candidates CandidateSet, Xtrain, ytrain, Xtest, ytest mat.Matrix) (*Selection, error) {
	if report == nil || len(report.Entries) == 0 {
		return nil, errors.WithStage(errors.StageSelection,
			errors.NewValueError("Selector.Select", "evaluation report is empty"))
	}
	ranked := Rank(report)
	best := ranked[0]

	// NaN は比較が常に false になるので、否定で判定する
	if !(best.Score >= s.Config.MinScore) {
		s.logger.Warn("No acceptable model",
			log.CandidateKey, best.Name,
			log.R2ScoreKey, best.Score,
			log.MinScoreKey, s.Config.MinScore,
		)
		return nil, errors.NewNoAcceptableModelError(best.Name, best.Score, s.Config.MinScore)
	}

	cand, ok := candidates.Get(best.Name)
	if !ok {
		return nil, errors.WithStage(errors.StageSelection,
			errors.NewValueError("Selector.Select", "report names unknown candidate "+best.Name))
	}

	est, err := ms.Configure(cand.Model, best.Params)
	if err != nil {
		return nil, errors.WithStage(errors.StageSelection, err)
	}
	err = errors.SafeExecute("Selector.refit", func() error { return est.Fit(Xtrain, ytrain) })
	if err != nil {
		return nil, errors.WithStage(errors.StageSelection, errors.Wrapf(err, "refit %q", best.Name))
	}
	pred, err := est.Predict(Xtest)
	if err != nil {
		return nil, errors.WithStage(errors.StageSelection, errors.Wrapf(err, "predict %q", best.Name))
	}
	scores, err := metrics.Regression(ytest, pred)
	if err != nil {
		return nil, errors.WithStage(errors.StageSelection, err)
	}

	sel := &Selection{
		Name:           best.Name,
		Params:         best.Params,
		Model:          est,
		SelectionScore: best.Score,
		TestScore:      scores.R2,
		TestMetrics:    scores,
	}

	if s.Config.ModelPath != "" {
		if s.Store == nil {
			return nil, errors.WithStage(errors.StageSelection,
				errors.NewValueError("Selector.Select", "model path is set but no store is configured"))
		}
		if err := s.Store.Save(s.Config.ModelPath, est); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Model selected",
		log.CandidateKey, sel.Name,
		log.HyperParamsKey, sel.Params,
		log.R2ScoreKey, sel.SelectionScore,
		log.TestScoreKey, sel.TestScore,
		log.PathKey, s.Config.ModelPath,
	)
	return sel, nil
}
