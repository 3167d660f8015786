package engine

import (
	"sort"

	"mercator-hq/rulesengine/pkg/rules"
)

// SortRulesByPriority sorts rules in place by ascending priority.
// Lower numbers run first; ties are broken by rule id so the order is
// deterministic.
func SortRulesByPriority(ruleset []*rules.BusinessRule) {
	sort.SliceStable(ruleset, func(i, j int) bool {
		if ruleset[i].Priority != ruleset[j].Priority {
			return ruleset[i].Priority < ruleset[j].Priority
		}
		return ruleset[i].ID < ruleset[j].ID
	})
}
