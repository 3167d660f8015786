package simulation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// suiteFile is the on-disk layout of a test suite.
type suiteFile struct {
	Tests []TestCase `yaml:"tests"`
}

// LoadSuite reads test cases from a YAML file of the form:
//
//	tests:
//	  - rule_id: high-value-orders
//	    name: large order escalates
//	    input_context:
//	      order: {total: 1500}
//	    expected_match: true
//	    expected_actions: [escalate]
func LoadSuite(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test suite %q: %w", path, err)
	}

	var suite suiteFile
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse test suite %q: %w", path, err)
	}

	for i, tc := range suite.Tests {
		if tc.RuleID == "" {
			return nil, fmt.Errorf("test suite %q: tests[%d]: rule_id is required", path, i)
		}
	}
	return suite.Tests, nil
}

// LoadSimulation reads a simulation definition from a YAML file.
// Sample contexts without an id are numbered by position.
func LoadSimulation(path string) (*Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation %q: %w", path, err)
	}

	var sim Simulation
	if err := yaml.Unmarshal(data, &sim); err != nil {
		return nil, fmt.Errorf("failed to parse simulation %q: %w", path, err)
	}

	if sim.ID == "" {
		sim.ID = path
	}
	for i := range sim.SampleContexts {
		if sim.SampleContexts[i].ID == "" {
			sim.SampleContexts[i].ID = fmt.Sprintf("context-%d", i+1)
		}
	}
	return &sim, nil
}
