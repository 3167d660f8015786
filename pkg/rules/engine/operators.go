package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"mercator-hq/rulesengine/pkg/rules"
)

// evaluateOperator compares a resolved field value with the condition value.
// found is false when the field was absent from the context.
// Type mismatches never match.
func evaluateOperator(op rules.Operator, actual interface{}, found bool, expected interface{}) bool {
	switch op {
	case rules.OperatorEquals:
		return valuesEqual(actual, expected)

	case rules.OperatorNotEquals:
		return !valuesEqual(actual, expected)

	case rules.OperatorGreaterThan:
		a, e, ok := toNumeric(actual, expected)
		return ok && a > e

	case rules.OperatorLessThan:
		a, e, ok := toNumeric(actual, expected)
		return ok && a < e

	case rules.OperatorContains:
		if !found {
			return false
		}
		return collectionContains(actual, expected)

	case rules.OperatorIn:
		if !found {
			return false
		}
		return collectionContains(expected, actual)

	case rules.OperatorIsNull:
		return !found || isNil(actual)

	case rules.OperatorBetween:
		return evaluateBetween(actual, expected)

	default:
		return false
	}
}

// valuesEqual compares two values, treating all numeric kinds alike.
func valuesEqual(actual, expected interface{}) bool {
	if isNil(actual) && isNil(expected) {
		return true
	}
	if isNil(actual) || isNil(expected) {
		return false
	}

	// Try numeric comparison first (handles int vs float64)
	actualNum, actualErr := convertToFloat64(actual)
	expectedNum, expectedErr := convertToFloat64(expected)
	if actualErr == nil && expectedErr == nil {
		return actualNum == expectedNum
	}

	return reflect.DeepEqual(actual, expected)
}

// evaluateBetween checks low <= actual <= high for a two element bound.
func evaluateBetween(actual, bounds interface{}) bool {
	val := reflect.ValueOf(bounds)
	if bounds == nil || (val.Kind() != reflect.Slice && val.Kind() != reflect.Array) || val.Len() != 2 {
		return false
	}

	n, err := convertToFloat64(actual)
	if err != nil {
		return false
	}
	low, err := convertToFloat64(val.Index(0).Interface())
	if err != nil {
		return false
	}
	high, err := convertToFloat64(val.Index(1).Interface())
	if err != nil {
		return false
	}

	return low <= n && n <= high
}

// collectionContains reports whether collection holds elem.
// Slices and arrays are searched element by element, maps by key, and
// strings by substring.
func collectionContains(collection, elem interface{}) bool {
	if collection == nil {
		return false
	}

	if s, ok := collection.(string); ok {
		sub, ok := elem.(string)
		return ok && strings.Contains(s, sub)
	}

	val := reflect.ValueOf(collection)
	switch val.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			if valuesEqual(val.Index(i).Interface(), elem) {
				return true
			}
		}
		return false

	case reflect.Map:
		key, ok := elem.(string)
		if !ok || val.Type().Key().Kind() != reflect.String {
			return false
		}
		return val.MapIndex(reflect.ValueOf(key).Convert(val.Type().Key())).IsValid()

	default:
		return false
	}
}

// toNumeric converts both values to float64 for ordering comparisons.
func toNumeric(actual, expected interface{}) (float64, float64, bool) {
	actualNum, err := convertToFloat64(actual)
	if err != nil {
		return 0, 0, false
	}
	expectedNum, err := convertToFloat64(expected)
	if err != nil {
		return 0, 0, false
	}
	return actualNum, expectedNum, true
}

// convertToFloat64 converts a numeric value to float64.
// Booleans and strings are not numbers.
func convertToFloat64(v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case json.Number:
		return val.Float64()
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// isNil reports whether v is nil or a nil pointer, map or slice.
func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return val.IsNil()
	default:
		return false
	}
}
