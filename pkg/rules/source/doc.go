// Package source loads rule definitions kept outside the store and
// synchronizes them into a RuleStore.
//
// Rules live in YAML documents with two top-level keys:
//
//	rules:
//	  - id: high-value-order
//	    name: High value order
//	    priority: 100
//	    status: active
//	    condition_group:
//	      conditions:
//	        - field: order.total
//	          operator: greater_than
//	          value: 1000
//	    actions:
//	      - action_type: escalate
//	        parameters:
//	          level: manager
//	groups:
//	  - id: orders
//	    name: Order rules
//	    rules: [high-value-order]
//
// A directory is loaded recursively. Files can come from the local disk,
// watched with fsnotify (FileWatcher), or from a git repository (GitSource).
// Syncer applies a loaded Bundle to a store, creating a new rule version
// only when a rule's content actually changed.
package source
