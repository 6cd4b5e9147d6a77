// Package training evaluates candidate regressors, selects the best one and
// runs the end-to-end training pipeline.
package training

import (
	"sort"

	"github.com/YuminosukeSato/mathscore/config"
	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
	"github.com/YuminosukeSato/mathscore/sklearn/dummy"
	"github.com/YuminosukeSato/mathscore/sklearn/ensemble"
	"github.com/YuminosukeSato/mathscore/sklearn/linear_model"
	ms "github.com/YuminosukeSato/mathscore/sklearn/model_selection"
	"github.com/YuminosukeSato/mathscore/sklearn/neighbors"
	"github.com/YuminosukeSato/mathscore/sklearn/tree"
)

// 候補名
const (
	RandomForest     = "Random Forest"
	DecisionTree     = "Decision Tree"
	GradientBoosting = "Gradient Boosting"
	LinearRegression = "Linear Regression"
	Ridge            = "Ridge"
	KNeighbors       = "K-Neighbors Regressor"
	AdaBoost         = "AdaBoost Regressor"
	ConstantMean     = "ConstantMean"
)

// Candidate は名前付きの未学習モデルと探索する格子
type Candidate struct {
	Name  string
	Model model.Estimator
	Grid  ms.ParamGrid
}

// CandidateSet は名前順に並んだ候補の列。順序は評価・同点時の選択に使われる。
type CandidateSet []Candidate

// NewCandidateSet は名前→候補の対応から名前順の候補集合を作る。
// Candidate.Name が空の場合はキーを名前として使う。
func NewCandidateSet(byName map[string]Candidate) CandidateSet {
	set := make(CandidateSet, 0, len(byName))
	for name, c := range byName {
		if c.Name == "" {
			c.Name = name
		}
		set = append(set, c)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Name < set[j].Name })
	return set
}

// Get は名前で候補を探す
func (s CandidateSet) Get(name string) (Candidate, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Candidate{}, false
}

// Names は候補名を順に返す
func (s CandidateSet) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

func values(v ...interface{}) []interface{} { return v }

// DefaultCandidates は既定の候補集合を返す。
//
// 格子は元のノートブックの探索範囲に合わせている。XGBoost と CatBoost の代わりに
// Gradient Boosting が learning_rate × n_estimators を探索する。
func DefaultCandidates() CandidateSet {
	return NewCandidateSet(map[string]Candidate{
		RandomForest: {
			Model: ensemble.NewRandomForestRegressor(100),
			Grid:  ms.ParamGrid{{Name: "n_estimators", Values: values(8, 16, 32, 64, 128, 256)}},
		},
		DecisionTree: {
			Model: tree.NewDecisionTreeRegressor(),
			Grid: ms.ParamGrid{{Name: "criterion", Values: values(
				tree.CriterionSquaredError, tree.CriterionFriedmanMSE, tree.CriterionAbsoluteError)}},
		},
		GradientBoosting: {
			Model: ensemble.NewGradientBoostingRegressor(),
			Grid: ms.ParamGrid{
				{Name: "learning_rate", Values: values(0.1, 0.05, 0.01)},
				{Name: "n_estimators", Values: values(32, 64, 128)},
			},
		},
		LinearRegression: {Model: linear_model.NewLinearRegression()},
		Ridge: {
			Model: linear_model.NewRidge(1.0),
			Grid:  ms.ParamGrid{{Name: "alpha", Values: values(0.1, 1.0, 10.0)}},
		},
		KNeighbors: {
			Model: neighbors.NewKNeighborsRegressor(5),
			Grid:  ms.ParamGrid{{Name: "n_neighbors", Values: values(5, 7, 9, 11)}},
		},
		AdaBoost:     {Model: ensemble.NewAdaBoostRegressor()},
		ConstantMean: {Model: dummy.NewDummyRegressor(dummy.StrategyMean)},
	})
}

// FromConfig は DefaultCandidates に設定ファイルの上書きを適用する。
// 未知の候補名や不正なパラメータは ValidationError になる。
func FromConfig(overrides map[string]config.CandidateConfig) (CandidateSet, error) {
	defaults := DefaultCandidates()
	byName := make(map[string]Candidate, len(defaults))
	for _, c := range defaults {
		byName[c.Name] = c
	}

	for name, o := range overrides {
		c, ok := byName[name]
		if !ok {
			return nil, errors.NewValidationError("candidates", "unknown candidate", name)
		}
		if o.Disabled {
			delete(byName, name)
			continue
		}
		if len(o.Params) > 0 {
			est, err := ms.Configure(c.Model, o.Params)
			if err != nil {
				return nil, errors.Wrapf(err, "candidate %q", name)
			}
			c.Model = est
		}
		if o.Grid != nil {
			grid := make(ms.ParamGrid, len(o.Grid))
			for i, p := range o.Grid {
				grid[i] = ms.Param{Name: p.Name, Values: p.Values}
			}
			if err := grid.Validate(); err != nil {
				return nil, errors.Wrapf(err, "candidate %q", name)
			}
			c.Grid = grid
		}
		byName[name] = c
	}

	if len(byName) == 0 {
		return nil, errors.NewValidationError("candidates", "every candidate is disabled", len(overrides))
	}
	return NewCandidateSet(byName), nil
}
