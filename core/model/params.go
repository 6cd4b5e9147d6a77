package model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// ハイパーパラメータの値はYAML(int)・JSON(float64)・Goコード(任意の数値型)から届くため、
// SetParamsの実装はここにある変換関数で型をそろえる。

// IntParam は v を int に変換する。整数値でない浮動小数点数は拒否する。
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return int(x), nil
	default:
		return 0, errors.NewValidationError(name, "must be an integer", v)
	}
}

// FloatParam は v を float64 に変換する。
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(name, "must be a number", v)
	}
}

// StringParam は v を string に変換する。
func StringParam(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "must be a string", v)
	}
	return s, nil
}

// OneOf は value が allowed のいずれかであることを検証する。
func OneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.NewValidationError(name, fmt.Sprintf("must be one of %v", allowed), value)
}

// UnknownParam は未知のハイパーパラメータ名に対するエラーを返す。
func UnknownParam(modelName, name string, value interface{}) error {
	return errors.NewValidationError(name, "unknown parameter for "+modelName, value)
}

// BoolParam は v を bool に変換する。
func BoolParam(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "must be a boolean", v)
	}
	return b, nil
}
