// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 学習パイプラインの各ステージ（取り込み、変換、評価、選択、永続化、推論）で発生した
// 失敗を、ステージ名と元の原因を保持した構造化エラーとして呼び出し元へ伝播します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("mathscore-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// DataConversionWarning は学習データから統計量を推定できず、既定値で補った場合の警告です。
type DataConversionWarning struct {
	Column string
	Reason string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("column %q: %s", w.Column, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(column, reason string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, Reason: reason}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、交差検証の検証foldで目的変数が定数だった場合のR²など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	パイプラインのステージ
//
// ===========================================================================

// Stage は失敗が発生したパイプラインのステージです。
type Stage string

const (
	StageIngestion      Stage = "ingestion"
	StageTransformation Stage = "transformation"
	StageEvaluation     Stage = "evaluation"
	StageSelection      Stage = "selection"
	StagePersistence    Stage = "persistence"
	StageInference      Stage = "inference"
)

type staged interface {
	error
	Stage() Stage
}

// StageOf はエラーチェーンの最も外側にあるステージを返します。
func StageOf(err error) (Stage, bool) {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if s, ok := e.(staged); ok {
			return s.Stage(), true
		}
	}
	return "", false
}

// StageError は任意のエラーにステージを付与するラッパーです。
type StageError struct {
	At  Stage
	Err error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("mathscore: %s: %v", e.At, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage はエラーのステージを返します。
func (e *StageError) Stage() Stage { return e.At }

// WithStage はerrにステージを付与します。errがnilの場合はnilを返します。
func WithStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&StageError{At: stage, Err: err})
}

// ===========================================================================
//
//	ステージ別のエラー型
//
// ===========================================================================

// IngestionError は入力テーブルの読み込み、解析、分割に失敗した場合のエラーです。
type IngestionError struct {
	Op   string
	Path string
	Err  error
}

func (e *IngestionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("mathscore: ingestion: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("mathscore: ingestion: %s: %v", e.Op, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Stage はエラーのステージを返します。
func (e *IngestionError) Stage() Stage { return StageIngestion }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *IngestionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", string(StageIngestion)).
		Str("operation", e.Op).
		Str("path", e.Path).
		AnErr("cause", e.Err).
		Str("type", "IngestionError")
}

// NewIngestionError は新しいIngestionErrorを作成し、スタックトレースを付与します。
func NewIngestionError(op, path string, err error) error {
	return errors.WithStack(&IngestionError{Op: op, Path: path, Err: err})
}

// TransformationError はスキーマの不一致や fit/transform の呼び出し順序違反を表します。
type TransformationError struct {
	Op     string
	Column string
	Reason string
	Err    error
}

func (e *TransformationError) Error() string {
	msg := fmt.Sprintf("mathscore: transformation: %s: %s", e.Op, e.Reason)
	if e.Column != "" {
		msg = fmt.Sprintf("mathscore: transformation: %s: column %q: %s", e.Op, e.Column, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransformationError) Unwrap() error { return e.Err }

// Stage はエラーのステージを返します。
func (e *TransformationError) Stage() Stage { return StageTransformation }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TransformationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", string(StageTransformation)).
		Str("operation", e.Op).
		Str("column", e.Column).
		Str("reason", e.Reason).
		AnErr("cause", e.Err).
		Str("type", "TransformationError")
}

// NewTransformationError は新しいTransformationErrorを作成し、スタックトレースを付与します。
func NewTransformationError(op, column, reason string) error {
	return errors.WithStack(&TransformationError{Op: op, Column: column, Reason: reason})
}

// WrapTransformationError は下位のエラーを理由付きのTransformationErrorとしてラップします。
func WrapTransformationError(op, column, reason string, err error) error {
	return errors.WithStack(&TransformationError{Op: op, Column: column, Reason: reason, Err: err})
}

// EvaluationError は候補モデルの学習または予測が失敗した場合のエラーです。
type EvaluationError struct {
	Candidate string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("mathscore: evaluation: candidate %q: %v", e.Candidate, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Stage はエラーのステージを返します。
func (e *EvaluationError) Stage() Stage { return StageEvaluation }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EvaluationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", string(StageEvaluation)).
		Str("candidate", e.Candidate).
		AnErr("cause", e.Err).
		Str("type", "EvaluationError")
}

// NewEvaluationError は新しいEvaluationErrorを作成し、スタックトレースを付与します。
func NewEvaluationError(candidate string, err error) error {
	return errors.WithStack(&EvaluationError{Candidate: candidate, Err: err})
}

// NoAcceptableModelError は最良の候補のスコアが合格ラインを下回った場合のエラーです。
type NoAcceptableModelError struct {
	BestName  string
	BestScore float64
	MinScore  float64
}

func (e *NoAcceptableModelError) Error() string {
	return fmt.Sprintf("mathscore: selection: no acceptable model: best candidate %q scored %.4f, below the required %.4f",
		e.BestName, e.BestScore, e.MinScore)
}

// Stage はエラーのステージを返します。
func (e *NoAcceptableModelError) Stage() Stage { return StageSelection }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NoAcceptableModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", string(StageSelection)).
		Str("best_name", e.BestName).
		Float64("best_score", e.BestScore).
		Float64("min_score", e.MinScore).
		Str("type", "NoAcceptableModelError")
}

// NewNoAcceptableModelError は新しいNoAcceptableModelErrorを作成し、スタックトレースを付与します。
func NewNoAcceptableModelError(bestName string, bestScore, minScore float64) error {
	return errors.WithStack(&NoAcceptableModelError{BestName: bestName, BestScore: bestScore, MinScore: minScore})
}

// PersistenceError はアーティファクトの保存・読み込みでI/Oまたは(逆)シリアライズに失敗した場合のエラーです。
type PersistenceError struct {
	Op   string // "save", "load", "commit"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("mathscore: persistence: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Stage はエラーのステージを返します。
func (e *PersistenceError) Stage() Stage { return StagePersistence }

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PersistenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", string(StagePersistence)).
		Str("operation", e.Op).
		Str("path", e.Path).
		AnErr("cause", e.Err).
		Str("type", "PersistenceError")
}

// NewPersistenceError は新しいPersistenceErrorを作成し、スタックトレースを付与します。
func NewPersistenceError(op, path string, err error) error {
	return errors.WithStack(&PersistenceError{Op: op, Path: path, Err: err})
}

// ===========================================================================
//
//	推定器の汎用エラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mathscore: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("mathscore: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mathscore: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("mathscore: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mathscore: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("mathscore: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError は数値計算の結果にNaNやInfが含まれた場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("mathscore: numerical instability detected in %s. Values: [%s]", e.Operation, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrUnknownArtifact はアーティファクトの種類が登録されていない場合のエラーです。
	ErrUnknownArtifact = New("unknown artifact kind")
)
