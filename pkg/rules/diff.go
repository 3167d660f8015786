package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// contentFields are the rule fields compared by DiffContent. Bookkeeping
// fields (version, timestamps, actors) always differ between versions.
var contentFields = map[string]bool{
	"name":            true,
	"description":     true,
	"category":        true,
	"priority":        true,
	"status":          true,
	"condition_group": true,
	"actions":         true,
	"effective_from":  true,
	"effective_until": true,
	"stop_processing": true,
}

// DiffContent compares the content fields of two rules and returns the
// changes sorted by field name.
func DiffContent(oldRule, newRule *BusinessRule) ([]FieldChange, error) {
	oldFields, err := contentMap(oldRule)
	if err != nil {
		return nil, err
	}
	newFields, err := contentMap(newRule)
	if err != nil {
		return nil, err
	}

	var changes []FieldChange
	for field, oldValue := range oldFields {
		newValue, ok := newFields[field]
		switch {
		case !ok:
			changes = append(changes, FieldChange{Field: field, Type: "removed", OldValue: oldValue})
		case !bytes.Equal(oldValue, newValue):
			changes = append(changes, FieldChange{Field: field, Type: "modified", OldValue: oldValue, NewValue: newValue})
		}
	}
	for field, newValue := range newFields {
		if _, ok := oldFields[field]; !ok {
			changes = append(changes, FieldChange{Field: field, Type: "added", NewValue: newValue})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Field < changes[j].Field
	})
	return changes, nil
}

// SameContent reports whether two rules have identical content fields.
func SameContent(a, b *BusinessRule) bool {
	changes, err := DiffContent(a, b)
	return err == nil && len(changes) == 0
}

func contentMap(rule *BusinessRule) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule %s: %w", rule.ID, err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to decode rule %s: %w", rule.ID, err)
	}
	fields := make(map[string]json.RawMessage, len(contentFields))
	for name, raw := range all {
		if contentFields[name] {
			fields[name] = raw
		}
	}
	return fields, nil
}
