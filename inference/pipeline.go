// Package inference loads a persisted (preprocessor, model) pair and predicts
// math scores for raw student records.
package inference

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/artifact"
	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/dataset"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	"github.com/YuminosukeSato/mathscore/preprocessing"
)

// Record は1人分の生の入力値（列名→値）。目的変数は含まない。
// 数値列の空文字列や "NA" は欠損として扱う。
type Record map[string]string

// Pipeline は学習済みの前処理とモデルの組。読み取り専用なので並行して使える。
type Pipeline struct {
	Preprocessor *preprocessing.Preprocessor
	Model        model.Regressor
	logger       log.Logger
}

// New は学習済みの組から Pipeline を作成する
func New(pre *preprocessing.Preprocessor, reg model.Regressor) (*Pipeline, error) {
	if pre == nil || !pre.IsFitted() {
		return nil, errors.WithStage(errors.StageInference,
			errors.NewNotFittedError("Preprocessor", "inference.New"))
	}
	if reg == nil {
		return nil, errors.WithStage(errors.StageInference,
			errors.NewValueError("inference.New", "model is nil"))
	}
	return &Pipeline{Preprocessor: pre, Model: reg, logger: log.GetLoggerWithName("inference.pipeline")}, nil
}

// Load はアーティファクトの組を読み込む
func Load(preprocessorPath, modelPath string) (*Pipeline, error) {
	store := artifact.NewStore()
	pre, err := store.LoadPreprocessor(preprocessorPath)
	if err != nil {
		return nil, err
	}
	reg, err := store.LoadRegressor(modelPath)
	if err != nil {
		return nil, err
	}
	return New(pre, reg)
}

// Columns は入力に必要な列名を返す
func (p *Pipeline) Columns() []string {
	return p.Preprocessor.Partition.Columns()
}

// Kinds は入力列ごとの学習時の型を返す
func (p *Pipeline) Kinds() map[string]dataset.Kind {
	part := p.Preprocessor.Partition
	kinds := make(map[string]dataset.Kind, len(part.Numeric)+len(part.Categorical))
	for _, name := range part.Columns() {
		kinds[name], _ = part.KindOf(name)
	}
	return kinds
}

// PredictCSV はCSVファイルの各行の予測値を返す。入力列は学習時の型で読むので、
// 数値に見える未知のカテゴリもエラーにならない。目的変数の列があれば無視する。
func (p *Pipeline) PredictCSV(path string) ([]float64, error) {
	table, err := dataset.ReadCSVWithKinds(path, p.Kinds())
	if err != nil {
		return nil, errors.WithStage(errors.StageInference, err)
	}
	return p.PredictTable(table.Drop(p.Preprocessor.Target))
}

// Predict は各レコードの予測値を返す。学習時に見ていないカテゴリはエラーにならない。
func (p *Pipeline) Predict(records []Record) ([]float64, error) {
	table, err := p.table(records)
	if err != nil {
		return nil, err
	}
	return p.PredictTable(table)
}

// PredictTable は特徴量テーブルの各行の予測値を返す
func (p *Pipeline) PredictTable(table *dataset.Table) ([]float64, error) {
	X, err := p.Preprocessor.Transform(table)
	if err != nil {
		return nil, errors.WithStage(errors.StageInference, err)
	}
	pred, err := p.Model.Predict(X)
	if err != nil {
		return nil, errors.WithStage(errors.StageInference, err)
	}
	out := mat.Col(nil, 0, pred)
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.WithStage(errors.StageInference,
				errors.NewNumericalInstabilityError("Pipeline.Predict", out))
		}
	}

	p.logger.Debug("Predicted",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
		log.PredsKey, len(out),
	)
	return out, nil
}

// table はレコードを学習時の分割どおりの型を持つテーブルに変換する
func (p *Pipeline) table(records []Record) (*dataset.Table, error) {
	if len(records) == 0 {
		return nil, errors.WithStage(errors.StageInference,
			errors.NewValueError("Pipeline.Predict", "no records"))
	}
	part := p.Preprocessor.Partition
	cols := make([]*dataset.Column, 0, len(part.Numeric)+len(part.Categorical))
	for _, name := range part.Columns() {
		kind, _ := part.KindOf(name)
		raw := make([]string, len(records))
		for i, r := range records {
			raw[i] = r[name]
		}
		c, err := dataset.ParseColumn(name, kind, raw)
		if err != nil {
			return nil, errors.WithStage(errors.StageInference,
				errors.WrapTransformationError("Pipeline.Predict", name, "invalid value", err))
		}
		cols = append(cols, c)
	}
	table, err := dataset.NewTable(cols...)
	if err != nil {
		return nil, errors.WithStage(errors.StageInference, err)
	}
	return table, nil
}
