package model

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// IntParam は整数パラメータを取り出す。JSON から読み込んだグリッドでは
// 数値が float64 になるため、整数値の float64 も受け付ける。
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// FloatParam は実数パラメータを取り出す。整数も受け付ける。
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		if !math.IsNaN(x) {
			return x, nil
		}
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", v)
}

// BoolParam は真偽値パラメータを取り出す
func BoolParam(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "must be a bool", v)
	}
	return b, nil
}

// StringParam は文字列パラメータを取り出す
func StringParam(name string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "must be a string", v)
	}
	return s, nil
}

// UnknownParam は未知のパラメータ名に対するエラーを返す
func UnknownParam(name string, v interface{}) error {
	return errors.NewValidationError(name, "unknown parameter", v)
}

// SortedKeys はパラメータ名を昇順で返す。SetParams を決定的な順序で適用するために使う。
func SortedKeys(params map[string]interface{}) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
