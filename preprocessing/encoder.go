package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mathscore/core/model"
	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// 未知カテゴリの扱い
const (
	// HandleUnknownIgnore は学習時に現れなかったカテゴリをすべて0のブロックとして符号化する
	HandleUnknownIgnore = "ignore"
	// HandleUnknownError は学習時に現れなかったカテゴリでエラーを返す
	HandleUnknownError = "error"
)

// OneHotEncoder はカテゴリ列をone-hot表現に変換する
// 各列のカテゴリは辞書順に並べられ、出力列の順序は学習データの出現順に依存しない
type OneHotEncoder struct {
	State *model.StateManager

	// HandleUnknown は "ignore"（デフォルト）または "error"
	HandleUnknown string

	// Categories は列ごとの学習済み語彙（辞書順）
	Categories [][]string

	// Index は Categories の逆引き（列ごとにカテゴリ→ブロック内の位置）
	Index []map[string]int
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder(handleUnknown string) *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager(), HandleUnknown: handleUnknown}
}

// Fit は各列の語彙を学習する。欠損セル("")は語彙に含めない。
func (e *OneHotEncoder) Fit(columns [][]string) error {
	if err := model.OneOf("handle_unknown", e.HandleUnknown, HandleUnknownIgnore, HandleUnknownError); err != nil {
		return err
	}
	if len(columns) == 0 || len(columns[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	e.Categories = make([][]string, len(columns))
	e.Index = make([]map[string]int, len(columns))
	for j, col := range columns {
		seen := make(map[string]bool)
		for _, v := range col {
			if v != "" {
				seen[v] = true
			}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)

		idx := make(map[string]int, len(cats))
		for k, v := range cats {
			idx[v] = k
		}
		e.Categories[j] = cats
		e.Index[j] = idx
	}

	e.State.SetFitted(len(columns), len(columns[0]))
	return nil
}

// NOutputs は変換後の列数を返す
func (e *OneHotEncoder) NOutputs() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats)
	}
	return n
}

// Transform はone-hot行列を返す
func (e *OneHotEncoder) Transform(columns [][]string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := e.State.CheckFeatures("OneHotEncoder.Transform", len(columns)); err != nil {
		return nil, err
	}
	if len(columns) == 0 || len(columns[0]) == 0 || e.NOutputs() == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	out := mat.NewDense(len(columns[0]), e.NOutputs(), nil)
	if err := e.transformInto(out, 0, columns); err != nil {
		return nil, err
	}
	return out, nil
}

// transformInto は dst の offset 列目から one-hot 値を書き込む。dst はゼロ初期化済みであること。
func (e *OneHotEncoder) transformInto(dst *mat.Dense, offset int, columns [][]string) error {
	for j, col := range columns {
		for i, v := range col {
			k, ok := e.Index[j][v]
			if !ok {
				if e.HandleUnknown == HandleUnknownError {
					return errors.NewValueError("OneHotEncoder.Transform",
						fmt.Sprintf("found unknown category %q in column %d", v, j))
				}
				continue
			}
			dst.Set(i, offset+k, 1)
		}
		offset += len(e.Categories[j])
	}
	return nil
}
