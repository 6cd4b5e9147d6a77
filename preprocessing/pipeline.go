package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/dataset"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
)

// スケーラー名
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

func init() {
	model.Register("preprocessing.Preprocessor", &Preprocessor{})
}

// Partition は目的変数を除いた特徴量列を数値列とカテゴリ列に分けたもの。
// 学習テーブルから一度だけ求め、以後のすべての変換で同じものを使う。
type Partition struct {
	Numeric     []string
	Categorical []string
}

// Columns は数値列、カテゴリ列の順に全特徴量列を返す
func (p Partition) Columns() []string {
	out := make([]string, 0, len(p.Numeric)+len(p.Categorical))
	out = append(out, p.Numeric...)
	return append(out, p.Categorical...)
}

// KindOf は列の種類を返す
func (p Partition) KindOf(name string) (dataset.Kind, bool) {
	for _, n := range p.Numeric {
		if n == name {
			return dataset.Numeric, true
		}
	}
	for _, n := range p.Categorical {
		if n == name {
			return dataset.Categorical, true
		}
	}
	return dataset.Ambiguous, false
}

// Option はPreprocessorの設定オプション
type Option func(*Preprocessor)

// WithScaler は数値列のスケーラーを設定する（"standard" または "minmax"）
func WithScaler(name string) Option {
	return func(p *Preprocessor) {
		p.ScalerName = name
	}
}

// Preprocessor は列ごとの前処理パイプライン
//
//	数値列:     SimpleImputer(median) → StandardScaler
//	カテゴリ列: CategoryImputer(most_frequent) → OneHotEncoder(handle_unknown=ignore)
//
// 出力は数値列（Partition.Numeric順）の後にカテゴリ列ごとのone-hotブロックが続く。
// Fit後は不変で、Transformは状態を変更しない。
type Preprocessor struct {
	Target     string
	Partition  Partition
	ScalerName string

	NumImputer *SimpleImputer
	Scaler     Scaler
	CatImputer *CategoryImputer
	Encoder    *OneHotEncoder

	State *model.StateManager
}

// Build は学習テーブルの列の種類から未学習のパイプラインを構築する
//
// パラメータ:
//   - table: 目的変数を含む学習テーブル
//   - target: 目的変数の列名（どちらのグループにも含めない）
//   - opts: 設定オプション
//
// 戻り値:
//   - *Preprocessor: 未学習のパイプライン
//   - error: 目的変数がない、または種類が曖昧な列がある場合のTransformationError
func Build(table *dataset.Table, target string, opts ...Option) (*Preprocessor, error) {
	if !table.Has(target) {
		return nil, errors.NewTransformationError("Build", target, "target column is missing")
	}

	p := &Preprocessor{Target: target, ScalerName: ScalerStandard, State: model.NewStateManager()}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := newScaler(p.ScalerName); err != nil {
		return nil, errors.WrapTransformationError("Build", "", "invalid scaler", err)
	}

	for _, c := range table.Columns() {
		if c.Name == target {
			continue
		}
		switch c.Kind {
		case dataset.Numeric:
			p.Partition.Numeric = append(p.Partition.Numeric, c.Name)
		case dataset.Categorical:
			p.Partition.Categorical = append(p.Partition.Categorical, c.Name)
		default:
			return nil, errors.NewTransformationError("Build", c.Name, "column type is ambiguous (neither fully numeric nor fully categorical)")
		}
	}
	if len(p.Partition.Numeric)+len(p.Partition.Categorical) == 0 {
		return nil, errors.NewTransformationError("Build", "", "no feature columns besides the target")
	}
	return p, nil
}

// IsFitted はパイプラインが学習済みかどうかを返す
func (p *Preprocessor) IsFitted() bool {
	return p.State != nil && p.State.IsFitted()
}

// Fit は学習テーブルから中央値、スケール、最頻値、語彙を学習する。
// 学習済みのパイプラインを再学習することはできない。
func (p *Preprocessor) Fit(table *dataset.Table) (err error) {
	defer errors.Recover(&err, "Preprocessor.Fit")

	if p.IsFitted() {
		return errors.NewTransformationError("Fit", "", "pipeline is already fitted")
	}
	if !table.Has(p.Target) {
		return errors.NewTransformationError("Fit", p.Target, "target column is missing")
	}
	if table.Rows() == 0 {
		return errors.WrapTransformationError("Fit", "", "no rows", errors.ErrEmptyData)
	}

	logger := log.GetLoggerWithName("preprocessing.pipeline")

	if len(p.Partition.Numeric) > 0 {
		X, err := p.numericBlock("Fit", table)
		if err != nil {
			return err
		}
		imp := NewSimpleImputer(StrategyMedian)
		imp.Columns = p.Partition.Numeric
		filled, err := imp.FitTransform(X)
		if err != nil {
			return errors.WrapTransformationError("Fit", "", "numeric imputation failed", err)
		}
		scaler, _ := newScaler(p.ScalerName)
		if err := scaler.Fit(filled); err != nil {
			return errors.WrapTransformationError("Fit", "", "scaling failed", err)
		}
		p.NumImputer, p.Scaler = imp, scaler
	}

	if len(p.Partition.Categorical) > 0 {
		cols, err := p.categoricalBlock("Fit", table)
		if err != nil {
			return err
		}
		imp := NewCategoryImputer(StrategyMostFrequent)
		if err := imp.Fit(cols); err != nil {
			return errors.WrapTransformationError("Fit", "", "categorical imputation failed", err)
		}
		filled, _ := imp.Transform(cols)
		enc := NewOneHotEncoder(HandleUnknownIgnore)
		if err := enc.Fit(filled); err != nil {
			return errors.WrapTransformationError("Fit", "", "encoding failed", err)
		}
		p.CatImputer, p.Encoder = imp, enc
	}

	p.State.SetFitted(p.NOutputs(), table.Rows())
	logger.Debug("Preprocessor fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, table.Rows(),
		log.FeaturesKey, p.NOutputs(),
	)
	return nil
}

// Transform はテーブルを特徴量行列に変換する。目的変数の列はあってもなくてもよい。
// 学習時に見ていないカテゴリはそのブロックがすべて0になる。
func (p *Preprocessor) Transform(table *dataset.Table) (_ *mat.Dense, err error) {
	defer errors.Recover(&err, "Preprocessor.Transform")

	if !p.IsFitted() {
		return nil, errors.WrapTransformationError("Transform", "", "transform called before fit",
			errors.NewNotFittedError("Preprocessor", "Transform"))
	}
	rows := table.Rows()
	if rows == 0 {
		return nil, errors.WrapTransformationError("Transform", "", "no rows", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, p.NOutputs(), nil)
	offset := 0

	if len(p.Partition.Numeric) > 0 {
		X, err := p.numericBlock("Transform", table)
		if err != nil {
			return nil, err
		}
		filled, err := p.NumImputer.Transform(X)
		if err != nil {
			return nil, errors.WrapTransformationError("Transform", "", "numeric imputation failed", err)
		}
		scaled, err := p.Scaler.Transform(filled)
		if err != nil {
			return nil, errors.WrapTransformationError("Transform", "", "scaling failed", err)
		}
		offset = len(p.Partition.Numeric)
		out.Slice(0, rows, 0, offset).(*mat.Dense).Copy(scaled)
	}

	if len(p.Partition.Categorical) > 0 {
		cols, err := p.categoricalBlock("Transform", table)
		if err != nil {
			return nil, err
		}
		filled, err := p.CatImputer.Transform(cols)
		if err != nil {
			return nil, errors.WrapTransformationError("Transform", "", "categorical imputation failed", err)
		}
		if err := p.Encoder.transformInto(out, offset, filled); err != nil {
			return nil, errors.WrapTransformationError("Transform", "", "encoding failed", err)
		}
	}
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (p *Preprocessor) FitTransform(table *dataset.Table) (*mat.Dense, error) {
	if err := p.Fit(table); err != nil {
		return nil, err
	}
	return p.Transform(table)
}

// NOutputs は変換後の列数を返す（学習前は数値列の数のみ）
func (p *Preprocessor) NOutputs() int {
	n := len(p.Partition.Numeric)
	if p.Encoder != nil {
		n += p.Encoder.NOutputs()
	}
	return n
}

// FeatureNames は出力列の名前を返す。数値列はそのまま、one-hot列は "列名=カテゴリ"。
func (p *Preprocessor) FeatureNames() []string {
	names := append([]string{}, p.Partition.Numeric...)
	if p.Encoder == nil {
		return names
	}
	for j, col := range p.Partition.Categorical {
		for _, cat := range p.Encoder.Categories[j] {
			names = append(names, col+"="+cat)
		}
	}
	return names
}

// numericBlock は数値列を n×len(Numeric) の行列（欠損はNaN）として取り出す
func (p *Preprocessor) numericBlock(op string, table *dataset.Table) (*mat.Dense, error) {
	X := mat.NewDense(table.Rows(), len(p.Partition.Numeric), nil)
	for j, name := range p.Partition.Numeric {
		c, err := p.column(op, table, name, dataset.Numeric)
		if err != nil {
			return nil, err
		}
		for i, v := range c.Numbers {
			X.Set(i, j, v)
		}
	}
	return X, nil
}

// categoricalBlock はカテゴリ列を列ごとのスライスとして取り出す
func (p *Preprocessor) categoricalBlock(op string, table *dataset.Table) ([][]string, error) {
	cols := make([][]string, len(p.Partition.Categorical))
	for j, name := range p.Partition.Categorical {
		c, err := p.column(op, table, name, dataset.Categorical)
		if err != nil {
			return nil, err
		}
		cols[j] = c.Categories
	}
	return cols, nil
}

// column は列を取り出し、種類が分割と一致することを確認する。
// すべて欠損の列は読み込み時に種類を決められないため、期待する種類の欠損列として扱う。
func (p *Preprocessor) column(op string, table *dataset.Table, name string, want dataset.Kind) (*dataset.Column, error) {
	c, ok := table.Column(name)
	if !ok {
		return nil, errors.NewTransformationError(op, name, "column is missing")
	}
	if c.Kind == want {
		return c, nil
	}
	for i := 0; i < c.Len(); i++ {
		if !c.IsMissing(i) {
			return nil, errors.NewTransformationError(op, name, "column is "+c.Kind.String()+", expected "+want.String())
		}
	}
	if want == dataset.Numeric {
		values := make([]float64, c.Len())
		for i := range values {
			values[i] = math.NaN()
		}
		return dataset.NewNumericColumn(name, values), nil
	}
	return dataset.NewCategoricalColumn(name, make([]string, c.Len())), nil
}
