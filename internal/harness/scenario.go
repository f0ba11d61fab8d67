// Package harness runs conformance scenarios: YAML files that name a rig
// definition and the expected outcome of compiling it, either a golden
// schedule or a specific error code. Golden files keep the canonical JSON
// encoding byte-stable across refactors.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance case.
type Scenario struct {
	// Name uniquely identifies this scenario; it is also the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rig is the path to the rig definition, relative to the scenario file.
	Rig string `yaml:"rig"`

	// Expect describes the outcome of compiling the rig's protocol.
	Expect Expect `yaml:"expect"`
}

// Expect is the expected outcome. Exactly one of Golden and ErrorCode must
// be set; Warnings may accompany Golden.
type Expect struct {
	// Golden names a golden schedule file under testdata/golden.
	Golden string `yaml:"golden,omitempty"`

	// ErrorCode is a protocol or structural error code, e.g. OUT_OF_BOUNDS.
	ErrorCode string `yaml:"error_code,omitempty"`

	// Warnings lists warning codes the compilation must emit, in order.
	Warnings []string `yaml:"warnings,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected to catch typos; the rig path is resolved relative to the
// scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if !filepath.IsAbs(scenario.Rig) {
		scenario.Rig = filepath.Join(filepath.Dir(path), scenario.Rig)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Rig == "" {
		return fmt.Errorf("rig is required")
	}
	if _, err := os.Stat(s.Rig); os.IsNotExist(err) {
		return fmt.Errorf("rig file not found: %s", s.Rig)
	}

	hasGolden := s.Expect.Golden != ""
	hasError := s.Expect.ErrorCode != ""
	if hasGolden == hasError {
		return fmt.Errorf("expect: exactly one of golden and error_code is required")
	}
	if hasError && len(s.Expect.Warnings) > 0 {
		return fmt.Errorf("expect: warnings cannot accompany error_code")
	}
	return nil
}
