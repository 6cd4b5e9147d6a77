// Package tree は CART 回帰木を提供する。
//
// 学習済みの木はノードの平坦なスライスとして保持されるため、そのままgobで保存できる。
package tree

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

func init() {
	model.Register("tree.DecisionTreeRegressor", &DecisionTreeRegressor{})
}

// Node は木の1ノード。Feature が -1 なら葉。
// 分割ノードでは X[Feature] <= Threshold の標本が Left に進む。
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	Impurity  float64
	NSamples  int
}

// DecisionTreeRegressor は scikit-learn の DecisionTreeRegressor に相当する回帰木
type DecisionTreeRegressor struct {
	State *model.StateManager

	// Hyperparameters
	Criterion       string // "squared_error", "friedman_mse", "absolute_error"
	MaxDepth        int    // 0 は無制限
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 は全特徴量
	RandomState     uint64

	// Learned
	Nodes              []Node
	FeatureImportances []float64
}

// Option は DecisionTreeRegressor の設定オプション
type Option func(*DecisionTreeRegressor)

// WithCriterion は分割基準を設定
func WithCriterion(criterion string) Option {
	return func(t *DecisionTreeRegressor) { t.Criterion = criterion }
}

// WithMaxDepth は木の最大深さを設定（0は無制限）
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxDepth = depth }
}

// WithMinSamplesSplit は分割に必要な最小標本数を設定
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉の最小標本数を設定
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}

// WithMaxFeatures は各分割で考慮する特徴量数を設定
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MaxFeatures = n }
}

// WithRandomState は特徴量の抽出に使う乱数シードを設定
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor は新しい回帰木を作成
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		State:           model.NewStateManager(),
		Criterion:       CriterionSquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validate() error {
	if err := model.OneOf("criterion", t.Criterion,
		CriterionSquaredError, CriterionFriedmanMSE, CriterionAbsoluteError); err != nil {
		return err
	}
	if t.MaxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", t.MinSamplesLeaf)
	}
	if t.MaxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", t.MaxFeatures)
	}
	return nil
}

// Fit は木を学習する
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	rows, _, err := model.CheckXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	return t.FitColumns(ColumnMajor(X), model.Column(y, 0), idx)
}

// FitColumns は列優先の特徴量 cols と目的変数 y のうち idx の標本で木を学習する。
// idx は重複を含んでよい（ブートストラップ標本）。cols と y は変更しない。
func (t *DecisionTreeRegressor) FitColumns(cols [][]float64, y []float64, idx []int) error {
	if err := t.validate(); err != nil {
		return err
	}
	if len(idx) == 0 || len(cols) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeRegressor.Fit")
	}

	b := &builder{
		cols:        cols,
		y:           y,
		criterion:   t.Criterion,
		maxDepth:    t.MaxDepth,
		minSplit:    t.MinSamplesSplit,
		minLeaf:     t.MinSamplesLeaf,
		maxFeatures: t.MaxFeatures,
		rng:         rand.New(rand.NewPCG(t.RandomState, t.RandomState)),
		importances: make([]float64, len(cols)),
	}
	b.grow(append([]int(nil), idx...), 0)

	var total float64
	for _, g := range b.importances {
		total += g
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}

	t.Nodes = b.nodes
	t.FeatureImportances = b.importances
	t.State.SetFitted(len(cols), len(idx))
	return nil
}

// PredictRow は1行の予測値を返す
func (t *DecisionTreeRegressor) PredictRow(x []float64) float64 {
	n := 0
	for t.Nodes[n].Feature >= 0 {
		node := t.Nodes[n]
		if x[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value
}

// Predict は入力データに対する予測を行う
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := t.State.CheckFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row = model.Row(X, i, row)
		out.Set(i, 0, t.PredictRow(row))
	}
	return out, nil
}

// Score は決定係数（R²）を返す
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// Depth は学習済みの木の深さを返す（根のみなら0）
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(n int) int
	walk = func(n int) int {
		if t.Nodes[n].Feature < 0 {
			return 0
		}
		return 1 + max(walk(t.Nodes[n].Left), walk(t.Nodes[n].Right))
	}
	return walk(0)
}

// NLeaves は葉の数を返す
func (t *DecisionTreeRegressor) NLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.Feature < 0 {
			n++
		}
	}
	return n
}

// GetParams はハイパーパラメータを返す
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.Criterion,
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
		"max_features":      t.MaxFeatures,
		"random_state":      int(t.RandomState),
	}
}

// SetParams はハイパーパラメータを設定する
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		if name == "criterion" {
			s, err := model.StringParam(name, v)
			if err != nil {
				return err
			}
			t.Criterion = s
			continue
		}
		n, err := model.IntParam(name, v)
		if err != nil {
			return err
		}
		switch name {
		case "max_depth":
			t.MaxDepth = n
		case "min_samples_split":
			t.MinSamplesSplit = n
		case "min_samples_leaf":
			t.MinSamplesLeaf = n
		case "max_features":
			t.MaxFeatures = n
		case "random_state":
			t.RandomState = uint64(n)
		default:
			return model.UnknownParam("DecisionTreeRegressor", name, v)
		}
	}
	return t.validate()
}

// Clone は同じハイパーパラメータの未学習の木を返す
func (t *DecisionTreeRegressor) Clone() model.Estimator {
	return t.CloneTree()
}

// CloneTree は Clone と同じだが具象型を返す
func (t *DecisionTreeRegressor) CloneTree() *DecisionTreeRegressor {
	return NewDecisionTreeRegressor(
		WithCriterion(t.Criterion),
		WithMaxDepth(t.MaxDepth),
		WithMinSamplesSplit(t.MinSamplesSplit),
		WithMinSamplesLeaf(t.MinSamplesLeaf),
		WithMaxFeatures(t.MaxFeatures),
		WithRandomState(t.RandomState),
	)
}

func (t *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		t.Criterion, t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf)
}

// ColumnMajor は X を特徴量ごとの列スライスに変換する
func ColumnMajor(X mat.Matrix) [][]float64 {
	_, cols := X.Dims()
	out := make([][]float64, cols)
	for j := range out {
		out[j] = model.Column(X, j)
	}
	return out
}

var _ model.Estimator = (*DecisionTreeRegressor)(nil)
