package policy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads and validates a YAML policy file. Unknown top-level
// fields are rejected so a typo in an operator's file fails loudly instead
// of silently dropping a mask.
func LoadFromFile(path string) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening policy file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var pol Policy
	if err := dec.Decode(&pol); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("policy file %s is empty", path)
		}
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}

	return &pol, nil
}
