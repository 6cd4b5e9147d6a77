package training

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/artifact"
	"github.com/YuminosukeSato/mathscore/config"
	"github.com/YuminosukeSato/mathscore/dataset"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	"github.com/YuminosukeSato/mathscore/preprocessing"
)

// Result は1回の学習実行の結果
type Result struct {
	RunID string `json:"run_id"`

	BestName       string                 `json:"best_name"`
	BestParams     map[string]interface{} `json:"best_params"`
	SelectionScore float64                `json:"selection_score"`
	TestScore      float64                `json:"test_score"`
	TestMetrics    metrics.Scores         `json:"test_metrics"`

	Report       *Report  `json:"report"`
	FeatureNames []string `json:"feature_names"`

	PreprocessorPath string        `json:"preprocessor_path"`
	ModelPath        string        `json:"model_path"`
	Duration         time.Duration `json:"duration"`
}

// Trainer は取り込みから保存までの学習パイプラインを実行する
type Trainer struct {
	cfg        config.Config
	store      *artifact.Store
	candidates CandidateSet
	metrics    *Metrics
	logger     log.Logger
}

// TrainerOption は Trainer の設定オプション
type TrainerOption func(*Trainer)

// WithCandidates は設定ファイルから作る候補集合を置き換える
func WithCandidates(set CandidateSet) TrainerOption {
	return func(t *Trainer) { t.candidates = set }
}

// WithMetrics はメトリクスの登録先を設定する
func WithMetrics(m *Metrics) TrainerOption {
	return func(t *Trainer) { t.metrics = m }
}

// WithStore はアーティファクトの保存先を設定する
func WithStore(s *artifact.Store) TrainerOption {
	return func(t *Trainer) { t.store = s }
}

// NewTrainer は検証済みの設定から Trainer を作成する
func NewTrainer(cfg config.Config, opts ...TrainerOption) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Trainer{cfg: cfg, logger: log.GetLoggerWithName("training.trainer")}
	for _, opt := range opts {
		opt(t)
	}
	if t.candidates == nil {
		set, err := FromConfig(cfg.Candidates)
		if err != nil {
			return nil, err
		}
		t.candidates = set
	}
	if t.store == nil {
		t.store = artifact.NewStore()
	}
	if t.metrics == nil {
		t.metrics = NewMetrics(nil)
	}
	return t, nil
}

// Candidates は評価する候補集合を返す
func (t *Trainer) Candidates() CandidateSet { return t.candidates }

// Ingest は入力CSVを読み込んで学習・テストに分割し、生データと分割結果を
// アーティファクトディレクトリにCSVとして書き出す。
func (t *Trainer) Ingest(ctx context.Context) (train, test *dataset.Table, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, errors.WithStage(errors.StageIngestion, err)
	}
	defer t.metrics.observeStage(string(errors.StageIngestion), time.Now())

	d := t.cfg.Data
	table, err := dataset.ReadCSV(d.Source)
	if err != nil {
		return nil, nil, err
	}
	train, test, err = dataset.TrainTestSplit(table, d.TestRatio, d.Seed)
	if err != nil {
		return nil, nil, err
	}

	a := t.cfg.Artifacts
	for _, out := range []struct {
		path  string
		table *dataset.Table
	}{
		{a.Path(a.RawData), table},
		{a.Path(a.TrainData), train},
		{a.Path(a.TestData), test},
	} {
		if err := dataset.WriteCSV(out.path, out.table); err != nil {
			return nil, nil, err
		}
	}

	t.logger.Info("Data ingested",
		log.PathKey, d.Source,
		log.SamplesKey, table.Rows(),
		"train_rows", train.Rows(),
		"test_rows", test.Rows(),
	)
	return train, test, nil
}

// Run は学習パイプライン全体を実行する。
//
// 前処理パイプラインはモデル選択の前に一時ファイルとして書き出し、モデルの保存が
// 成功した後に確定する。失敗した実行は設定されたアーティファクトのパスに触れない。
func (t *Trainer) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := t.logger.With(log.RunIDKey, runID)

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failed"
			if stage, ok := errors.StageOf(err); ok {
				outcome = string(stage)
			}
			logger.Error("Training run failed", err, log.StageKey, outcome)
		}
		t.metrics.Runs.WithLabelValues(outcome).Inc()
	}()

	train, test, err := t.Ingest(ctx)
	if err != nil {
		return nil, err
	}

	target := t.cfg.Data.Target
	stageStart := time.Now()
	pre, err := preprocessing.Build(train, target, preprocessing.WithScaler(t.cfg.Training.Scaler))
	if err != nil {
		return nil, err
	}
	Xtrain, err := pre.FitTransform(train)
	if err != nil {
		return nil, err
	}
	Xtest, err := pre.Transform(test)
	if err != nil {
		return nil, err
	}
	ytrain, ytest, err := targets(train, test, target)
	if err != nil {
		return nil, err
	}
	t.metrics.observeStage(string(errors.StageTransformation), stageStart)

	staged := &stagingSaver{store: t.store}
	defer staged.discard()
	if err := staged.Save(t.cfg.Artifacts.PreprocessorPath(), pre); err != nil {
		return nil, err
	}

	stageStart = time.Now()
	report, err := Evaluate(ctx, Xtrain, ytrain, Xtest, ytest, t.candidates, EvaluateOptions{
		Folds:   t.cfg.Training.Folds,
		Workers: t.cfg.Training.Workers,
		Logger:  logger.With(log.StageKey, string(errors.StageEvaluation)),
		Observe: func(e ReportEntry) {
			t.metrics.CandidateScore.WithLabelValues(e.Name).Set(e.Score)
		},
	})
	if err != nil {
		return nil, err
	}
	t.metrics.observeStage(string(errors.StageEvaluation), stageStart)

	stageStart = time.Now()
	selector := NewSelector(SelectorConfig{
		MinScore:  t.cfg.Training.MinScore,
		ModelPath: t.cfg.Artifacts.ModelPath(),
	}, staged)
	selector.logger = logger
	sel, err := selector.Select(report, t.candidates, Xtrain, ytrain, Xtest, ytest)
	if err != nil {
		return nil, err
	}
	t.metrics.observeStage(string(errors.StageSelection), stageStart)

	stageStart = time.Now()
	// モデル、前処理の順に確定する
	if err := staged.commit(); err != nil {
		return nil, err
	}
	t.metrics.observeStage(string(errors.StagePersistence), stageStart)
	t.metrics.TestScore.Set(sel.TestScore)

	res = &Result{
		RunID:            runID,
		BestName:         sel.Name,
		BestParams:       sel.Params,
		SelectionScore:   sel.SelectionScore,
		TestScore:        sel.TestScore,
		TestMetrics:      sel.TestMetrics,
		Report:           report,
		FeatureNames:     pre.FeatureNames(),
		PreprocessorPath: t.cfg.Artifacts.PreprocessorPath(),
		ModelPath:        t.cfg.Artifacts.ModelPath(),
		Duration:         time.Since(start),
	}
	logger.Info("Training run finished",
		log.CandidateKey, res.BestName,
		log.R2ScoreKey, res.SelectionScore,
		log.TestScoreKey, res.TestScore,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}

func targets(train, test *dataset.Table, target string) (ytrain, ytest *mat.Dense, err error) {
	if ytrain, err = train.Target(target); err != nil {
		return nil, nil, err
	}
	if ytest, err = test.Target(target); err != nil {
		return nil, nil, err
	}
	return ytrain, ytest, nil
}

// stagingSaver は Save を一時ファイルへの書き出しに置き換え、確定を呼び出し側に任せる
type stagingSaver struct {
	store   *artifact.Store
	pending []*artifact.Pending
}

func (s *stagingSaver) Save(path string, obj interface{}) error {
	p, err := s.store.Stage(path, obj)
	if err != nil {
		return err
	}
	s.pending = append(s.pending, p)
	return nil
}

// commit は後に書き出したものから順に確定する
func (s *stagingSaver) commit() error {
	for i := len(s.pending) - 1; i >= 0; i-- {
		if err := s.pending[i].Commit(); err != nil {
			return err
		}
	}
	s.pending = nil
	return nil
}

func (s *stagingSaver) discard() {
	for _, p := range s.pending {
		_ = p.Discard()
	}
	s.pending = nil
}
