package model_selection

import "github.com/YuminosukeSato/mathscore/pkg/errors"

// Param は1つのハイパーパラメータと探索する値の列
type Param struct {
	Name   string        `yaml:"name" json:"name" validate:"required"`
	Values []interface{} `yaml:"values" json:"values" validate:"min=1"`
}

// ParamGrid は宣言順に並んだハイパーパラメータの格子。空の格子は探索しないことを表す。
type ParamGrid []Param

// IsEmpty は探索するパラメータがないかどうかを返す
func (g ParamGrid) IsEmpty() bool {
	return len(g) == 0
}

// Size は組み合わせの総数を返す（空の格子は1）
func (g ParamGrid) Size() int {
	n := 1
	for _, p := range g {
		n *= len(p.Values)
	}
	return n
}

// Combinations は全ての組み合わせを直積の順に返す。
// 最後のパラメータが最も速く変化する（scikit-learn の ParameterGrid と同じ順序）。
//
// 例:
//
//	ParamGrid{{"a", []interface{}{1, 2}}, {"b", []interface{}{"x", "y"}}}.Combinations()
//	// [{a:1 b:x} {a:1 b:y} {a:2 b:x} {a:2 b:y}]
func (g ParamGrid) Combinations() []map[string]interface{} {
	total := g.Size()
	out := make([]map[string]interface{}, total)
	for c := 0; c < total; c++ {
		combo := make(map[string]interface{}, len(g))
		rest := c
		for k := len(g) - 1; k >= 0; k-- {
			values := g[k].Values
			combo[g[k].Name] = values[rest%len(values)]
			rest /= len(values)
		}
		out[c] = combo
	}
	return out
}

// Validate は名前の重複と空の値リストを拒否する
func (g ParamGrid) Validate() error {
	seen := make(map[string]bool, len(g))
	for _, p := range g {
		if p.Name == "" {
			return errors.NewValidationError("param_grid", "parameter name is empty", p.Values)
		}
		if seen[p.Name] {
			return errors.NewValidationError(p.Name, "parameter appears twice in the grid", p.Values)
		}
		if len(p.Values) == 0 {
			return errors.NewValidationError(p.Name, "parameter has no values to search", p.Values)
		}
		seen[p.Name] = true
	}
	return nil
}
