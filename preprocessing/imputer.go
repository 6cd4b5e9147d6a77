package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// 補完戦略
const (
	StrategyMean         = "mean"
	StrategyMedian       = "median"
	StrategyMostFrequent = "most_frequent"
	StrategyConstant     = "constant"
)

// SimpleImputer は数値列の欠損値(NaN)を列ごとの統計量で補完する
// scikit-learnのSimpleImputer(strategy="median")に相当する
type SimpleImputer struct {
	State *model.StateManager

	// Strategy は "median", "mean", "constant" のいずれか
	Strategy string

	// FillValue は strategy="constant" のときの補完値
	FillValue float64

	// Statistics は学習された列ごとの補完値
	Statistics []float64

	// Columns は警告メッセージに使う列名（省略可）
	Columns []string
}

// NewSimpleImputer は新しいSimpleImputerを作成する
//
// 使用例:
//
//	imp := preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)
//	XFilled, err := imp.FitTransform(X)
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{State: model.NewStateManager(), Strategy: strategy}
}

// Fit は欠損値を除いた各列の統計量を計算する。
// すべて欠損している列は0で補完し、警告を出す。
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	if err := model.OneOf("strategy", s.Strategy, StrategyMedian, StrategyMean, StrategyConstant); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		if s.Strategy == StrategyConstant {
			s.Statistics[j] = s.FillValue
			continue
		}
		observed := observedValues(model.Column(X, j))
		if len(observed) == 0 {
			errors.Warn(errors.NewDataConversionWarning(s.columnName(j), "all values missing, imputing 0"))
			continue
		}
		if s.Strategy == StrategyMean {
			s.Statistics[j] = stat.Mean(observed, nil)
		} else {
			s.Statistics[j] = median(observed)
		}
	}

	s.State.SetFitted(c, r)
	return nil
}

// Transform は欠損値を学習済みの統計量で置き換える
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.State.CheckFeatures("SimpleImputer.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform は学習と変換を同時に実行する
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *SimpleImputer) columnName(j int) string {
	if j < len(s.Columns) {
		return s.Columns[j]
	}
	return fmt.Sprintf("x%d", j)
}

func observedValues(col []float64) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// median は偶数個のとき中央2値の平均を返す（numpy.median と同じ）。values は並べ替えられる。
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// CategoryImputer はカテゴリ列の欠損値("")を最頻値で補完する
// 最頻値が複数ある場合は辞書順で最小のものを選ぶ（scikit-learnと同じ）
type CategoryImputer struct {
	State *model.StateManager

	// Strategy は "most_frequent" または "constant"
	Strategy string

	// FillValue は strategy="constant" のとき、または列がすべて欠損のときの補完値
	FillValue string

	// Statistics は学習された列ごとの補完値
	Statistics []string
}

// NewCategoryImputer は新しいCategoryImputerを作成する
func NewCategoryImputer(strategy string) *CategoryImputer {
	return &CategoryImputer{State: model.NewStateManager(), Strategy: strategy, FillValue: "missing_value"}
}

// Fit は各列の最頻値を計算する。columns[j] は j 列目のセル。
func (c *CategoryImputer) Fit(columns [][]string) error {
	if err := model.OneOf("strategy", c.Strategy, StrategyMostFrequent, StrategyConstant); err != nil {
		return err
	}
	if len(columns) == 0 || len(columns[0]) == 0 {
		return errors.NewModelError("CategoryImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	c.Statistics = make([]string, len(columns))
	for j, col := range columns {
		if c.Strategy == StrategyConstant {
			c.Statistics[j] = c.FillValue
			continue
		}
		mode, ok := mostFrequent(col)
		if !ok {
			mode = c.FillValue
		}
		c.Statistics[j] = mode
	}

	c.State.SetFitted(len(columns), len(columns[0]))
	return nil
}

// Transform は欠損セルを補完した新しい列を返す
func (c *CategoryImputer) Transform(columns [][]string) ([][]string, error) {
	if err := c.State.RequireFitted("CategoryImputer", "Transform"); err != nil {
		return nil, err
	}
	if err := c.State.CheckFeatures("CategoryImputer.Transform", len(columns)); err != nil {
		return nil, err
	}

	out := make([][]string, len(columns))
	for j, col := range columns {
		filled := make([]string, len(col))
		for i, v := range col {
			if v == "" {
				v = c.Statistics[j]
			}
			filled[i] = v
		}
		out[j] = filled
	}
	return out, nil
}

func mostFrequent(col []string) (string, bool) {
	counts := make(map[string]int)
	for _, v := range col {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := "", 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best, bestCount > 0
}
