package training

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	ms "github.com/YuminosukeSato/mathscore/sklearn/model_selection"
)

// ReportEntry は1つの候補の評価結果
type ReportEntry struct {
	Name string `json:"name"`

	// Score は格子があれば交差検証の平均R²、なければテスト分割のR²
	Score float64 `json:"score"`

	// Params は選ばれた組み合わせ（格子が空なら空のマップ）
	Params map[string]interface{} `json:"params"`

	CrossValidated bool          `json:"cross_validated"`
	FoldScores     []float64     `json:"fold_scores,omitempty"`
	StdScore       float64       `json:"std_score,omitempty"`
	Combinations   int           `json:"combinations"`
	Duration       time.Duration `json:"duration"`
}

// Report は候補順に並んだ評価結果。Evaluate が返した後は読み取り専用。
type Report struct {
	Entries []ReportEntry `json:"entries"`
}

// Get は名前で結果を探す
func (r *Report) Get(name string) (ReportEntry, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return ReportEntry{}, false
}

// EvaluateOptions は Evaluate の設定
type EvaluateOptions struct {
	// Folds は交差検証の分割数（0 は 3）
	Folds int

	// Workers はグリッドサーチの並列度（0以下は GOMAXPROCS）
	Workers int

	Logger log.Logger

	// Observe は候補ごとの結果を受け取る（省略可）
	Observe func(ReportEntry)
}

// Evaluate は各候補を順に評価する。
//
// 格子が空でない候補は学習分割だけを使った k-fold グリッドサーチで評価し、
// 最良の組み合わせの平均R²をスコアとする。格子が空の候補は既定のハイパーパラメータで
// 学習分割全体に1回学習し、テスト分割のR²をスコアとする。
//
// いずれかの候補の学習・予測が失敗（パニックを含む）すると、その候補名を持つ
// EvaluationError を返し、部分的なレポートは返さない。
func Evaluate(ctx context.Context, Xtrain, ytrain, Xtest, ytest mat.Matrix, candidates CandidateSet, opts EvaluateOptions) (*Report, error) {
	if len(candidates) == 0 {
		return nil, errors.WithStage(errors.StageEvaluation,
			errors.NewValueError("Evaluate", "candidate set is empty"))
	}
	folds := opts.Folds
	if folds == 0 {
		folds = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("training.evaluator")
	}

	report := &Report{Entries: make([]ReportEntry, 0, len(candidates))}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewEvaluationError(c.Name, err)
		}

		start := time.Now()
		var (
			entry ReportEntry
			err   error
		)
		if c.Grid.IsEmpty() {
			entry, err = scoreOnTest(c, Xtrain, ytrain, Xtest, ytest)
		} else {
			entry, err = searchGrid(ctx, c, Xtrain, ytrain, folds, opts.Workers)
		}
		if err != nil {
			logger.Error("Candidate evaluation failed", err, log.CandidateKey, c.Name)
			return nil, errors.NewEvaluationError(c.Name, err)
		}
		entry.Duration = time.Since(start)

		logger.Info("Candidate evaluated",
			log.CandidateKey, c.Name,
			log.R2ScoreKey, entry.Score,
			log.HyperParamsKey, entry.Params,
			log.CombinationsKey, entry.Combinations,
			log.DurationMsKey, entry.Duration.Milliseconds(),
		)
		if opts.Observe != nil {
			opts.Observe(entry)
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

func searchGrid(ctx context.Context, c Candidate, X, y mat.Matrix, folds, workers int) (ReportEntry, error) {
	gs := ms.NewGridSearchCV(c.Model, c.Grid)
	gs.CV = ms.NewKFold(folds, false, 0)
	gs.Workers = workers
	res, err := gs.Fit(ctx, X, y)
	if err != nil {
		return ReportEntry{}, err
	}
	best := res.Results[res.BestIndex]
	return ReportEntry{
		Name:           c.Name,
		Score:          res.BestScore,
		Params:         res.BestParams,
		CrossValidated: true,
		FoldScores:     best.FoldScores,
		StdScore:       best.StdScore,
		Combinations:   len(res.Results),
	}, nil
}

func scoreOnTest(c Candidate, Xtrain, ytrain, Xtest, ytest mat.Matrix) (ReportEntry, error) {
	var score float64
	err := errors.SafeExecute("Evaluate."+c.Name, func() error {
		est, err := ms.Configure(c.Model, nil)
		if err != nil {
			return err
		}
		if err := est.Fit(Xtrain, ytrain); err != nil {
			return err
		}
		pred, err := est.Predict(Xtest)
		if err != nil {
			return err
		}
		score, err = metrics.R2Score(ytest, pred)
		return err
	})
	if err != nil {
		return ReportEntry{}, err
	}
	return ReportEntry{
		Name:         c.Name,
		Score:        score,
		Params:       map[string]interface{}{},
		Combinations: 1,
	}, nil
}
