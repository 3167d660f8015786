// Rulesengine evaluates versioned business rules against input contexts.
//
// Rules are loaded from YAML files or a git repository into a versioned
// store. Every change is audited and can be rolled back.
//
// Usage:
//
//	# Run the engine with its operations server
//	rulesengine serve --config rulesengine.yaml
//
//	# Check rule files
//	rulesengine lint rules/
//
//	# Evaluate a context against a rules directory
//	rulesengine evaluate --rules rules/ --context order.json
//
//	# Run rule tests
//	rulesengine test --rules rules/ --suite tests.yaml
//
//	# Inspect the history of a rule
//	rulesengine rule history vip-discount
package main

func main() {
	Execute()
}
