package model

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]struct{}{}
)

// Register はgobでインターフェース越しに保存できるよう具象型を登録する。
// 各推定器パッケージが init で自身の型を登録する。
//
// 使用例:
//
//	func init() {
//	    model.Register("linear_model.LinearRegression", &LinearRegression{})
//	}
func Register(kind string, value interface{}) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[kind]; ok {
		return
	}
	gob.RegisterName(kind, value)
	registry[kind] = struct{}{}
}

// RegisteredKinds は登録済みの型名をソートして返す。
func RegisteredKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Envelope は保存される1つのアーティファクト。Object は登録済みの具象型でなければならない。
type Envelope struct {
	Kind   string
	Object interface{}
}

// SaveModelToWriter はモデルをEnvelopeに包んでio.Writerに保存する
//
// パラメータ:
//   - obj: 保存するモデル（Registerで登録済みの型）
//   - w: 保存先のWriter
//
// 戻り値:
//   - error: 保存に失敗した場合のエラー
func SaveModelToWriter(obj interface{}, w io.Writer) error {
	env := Envelope{Kind: fmt.Sprintf("%T", obj), Object: obj}
	if err := gob.NewEncoder(w).Encode(&env); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
//
// パラメータ:
//   - r: 読み込み元のReader
//
// 戻り値:
//   - interface{}: 復元されたモデル（保存時と同じ具象型）
//   - error: 読み込みに失敗した場合のエラー
func LoadModelFromReader(r io.Reader) (interface{}, error) {
	var env Envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if env.Object == nil {
		return nil, fmt.Errorf("failed to decode model: empty envelope of kind %q", env.Kind)
	}
	return env.Object, nil
}
