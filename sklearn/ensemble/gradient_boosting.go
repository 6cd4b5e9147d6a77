package ensemble

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/metrics"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/pkg/log"
	"github.com/YuminosukeSato/mathscore/sklearn/tree"
)

func init() {
	model.Register("ensemble.GradientBoostingRegressor", &GradientBoostingRegressor{})
}

// GradientBoostingRegressor は二乗誤差の勾配ブースティング
//
//	F_0(x) = mean(y)
//	F_m(x) = F_{m-1}(x) + learning_rate * h_m(x)
//
// h_m は残差 y - F_{m-1}(x) に当てはめた浅い回帰木。
// Subsample < 1 のときは各段で非復元抽出した標本だけを使う（確率的勾配ブースティング）。
type GradientBoostingRegressor struct {
	State *model.StateManager

	NEstimators     int
	LearningRate    float64
	Subsample       float64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     uint64

	Init  float64
	Trees []*tree.DecisionTreeRegressor

	// TrainScore は各段の学習データ上のMSE
	TrainScore []float64
}

// NewGradientBoostingRegressor は scikit-learn と同じデフォルト値で作成する
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		State:           model.NewStateManager(),
		NEstimators:     100,
		LearningRate:    0.1,
		Subsample:       1.0,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
}

func (g *GradientBoostingRegressor) validate() error {
	if g.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", g.NEstimators)
	}
	if g.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be > 0", g.LearningRate)
	}
	if g.Subsample <= 0 || g.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.Subsample)
	}
	return nil
}

// Fit はブースティングを NEstimators 段実行する
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	if err := g.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	columns := tree.ColumnMajor(X)
	target := model.Column(y, 0)
	rng := rand.New(rand.NewPCG(g.RandomState, g.RandomState))

	g.Init = stat.Mean(target, nil)
	g.Trees = make([]*tree.DecisionTreeRegressor, 0, g.NEstimators)
	g.TrainScore = make([]float64, 0, g.NEstimators)

	current := make([]float64, rows)
	for i := range current {
		current[i] = g.Init
	}
	residual := make([]float64, rows)
	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}
	nSub := max(1, int(g.Subsample*float64(rows)))
	row := make([]float64, cols)

	for m := 0; m < g.NEstimators; m++ {
		for i := range residual {
			residual[i] = target[i] - current[i]
		}

		idx := all
		if nSub < rows {
			idx = rng.Perm(rows)[:nSub]
			sort.Ints(idx)
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithCriterion(tree.CriterionFriedmanMSE),
			tree.WithMaxDepth(g.MaxDepth),
			tree.WithMinSamplesSplit(g.MinSamplesSplit),
			tree.WithMinSamplesLeaf(g.MinSamplesLeaf),
			tree.WithRandomState(rng.Uint64()),
		)
		if err := t.FitColumns(columns, residual, idx); err != nil {
			return errors.Wrapf(err, "GradientBoostingRegressor.Fit: stage %d", m)
		}

		var loss float64
		for i := 0; i < rows; i++ {
			for j := range row {
				row[j] = columns[j][i]
			}
			current[i] += g.LearningRate * t.PredictRow(row)
			d := target[i] - current[i]
			loss += d * d
		}
		g.Trees = append(g.Trees, t)
		g.TrainScore = append(g.TrainScore, loss/float64(rows))
	}

	g.State.SetFitted(cols, rows)
	log.GetLoggerWithName("ensemble.GradientBoostingRegressor").Debug("GradientBoostingRegressor fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		"n_estimators", g.NEstimators,
		"train_mse", g.TrainScore[len(g.TrainScore)-1],
	)
	return nil
}

// Predict は初期値と全ての段の木の寄与の和を返す
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.State.RequireFitted("GradientBoostingRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := g.State.CheckFeatures("GradientBoostingRegressor.Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		row = model.Row(X, i, row)
		v := g.Init
		for _, t := range g.Trees {
			v += g.LearningRate * t.PredictRow(row)
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

// Score は決定係数（R²）を返す
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, pred)
}

// GetParams はハイパーパラメータを返す
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      g.NEstimators,
		"learning_rate":     g.LearningRate,
		"subsample":         g.Subsample,
		"max_depth":         g.MaxDepth,
		"min_samples_split": g.MinSamplesSplit,
		"min_samples_leaf":  g.MinSamplesLeaf,
		"random_state":      int(g.RandomState),
	}
}

// SetParams はハイパーパラメータを設定する
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		var err error
		switch name {
		case "n_estimators":
			g.NEstimators, err = model.IntParam(name, v)
		case "learning_rate":
			g.LearningRate, err = model.FloatParam(name, v)
		case "subsample":
			g.Subsample, err = model.FloatParam(name, v)
		case "max_depth":
			g.MaxDepth, err = model.IntParam(name, v)
		case "min_samples_split":
			g.MinSamplesSplit, err = model.IntParam(name, v)
		case "min_samples_leaf":
			g.MinSamplesLeaf, err = model.IntParam(name, v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(name, v)
			g.RandomState = uint64(seed)
		default:
			return model.UnknownParam("GradientBoostingRegressor", name, v)
		}
		if err != nil {
			return err
		}
	}
	return g.validate()
}

// Clone は同じハイパーパラメータの未学習モデルを返す
func (g *GradientBoostingRegressor) Clone() model.Estimator {
	c := NewGradientBoostingRegressor()
	c.NEstimators = g.NEstimators
	c.LearningRate = g.LearningRate
	c.Subsample = g.Subsample
	c.MaxDepth = g.MaxDepth
	c.MinSamplesSplit = g.MinSamplesSplit
	c.MinSamplesLeaf = g.MinSamplesLeaf
	c.RandomState = g.RandomState
	return c
}

func (g *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, subsample=%g, max_depth=%d)",
		g.NEstimators, g.LearningRate, g.Subsample, g.MaxDepth)
}

var _ model.Estimator = (*GradientBoostingRegressor)(nil)
