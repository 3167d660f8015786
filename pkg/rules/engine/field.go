package engine

import (
	"reflect"
	"strings"

	"mercator-hq/rulesengine/pkg/rules"
)

// resolveField walks a dot-separated path through nested maps.
// found is false when any segment of the path is missing; a present key
// holding nil returns (nil, true).
func resolveField(path string, input rules.Context) (value interface{}, found bool) {
	if path == "" {
		return nil, false
	}

	var current interface{} = map[string]interface{}(input)
	for _, part := range strings.Split(path, ".") {
		next, ok := lookupKey(current, part)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// lookupKey returns the value stored under key in a map-like value.
func lookupKey(container interface{}, key string) (interface{}, bool) {
	switch m := container.(type) {
	case map[string]interface{}:
		v, ok := m[key]
		return v, ok
	case rules.Context:
		v, ok := m[key]
		return v, ok
	case map[string]string:
		v, ok := m[key]
		return v, ok
	case nil:
		return nil, false
	}

	// Fall back to reflection for other map types with string keys.
	val := reflect.ValueOf(container)
	if val.Kind() != reflect.Map || val.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	elem := val.MapIndex(reflect.ValueOf(key).Convert(val.Type().Key()))
	if !elem.IsValid() {
		return nil, false
	}
	return elem.Interface(), true
}
