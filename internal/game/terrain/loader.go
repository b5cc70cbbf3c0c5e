package terrain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlTable is the on-disk form of a terrain table.
type yamlTable struct {
	Modifiers map[string]int `yaml:"modifiers"`
}

// LoadTable reads a terrain table YAML file.
//
// Precondition: path must point to a readable YAML file.
// Postcondition: Returns a non-empty Table or a non-nil error.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading terrain table %s: %w", path, err)
	}
	return ParseTable(data)
}

// ParseTable parses a terrain table from YAML bytes. Every key must be a
// single-byte tile type code.
//
// Postcondition: Returns a non-empty Table or a non-nil error.
func ParseTable(data []byte) (Table, error) {
	var raw yamlTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing terrain table YAML: %w", err)
	}
	if len(raw.Modifiers) == 0 {
		return nil, fmt.Errorf("terrain table defines no modifiers")
	}
	table := make(Table, len(raw.Modifiers))
	for key, mod := range raw.Modifiers {
		if len(key) != 1 {
			return nil, fmt.Errorf("terrain code %q must be exactly one character", key)
		}
		table[key[0]] = mod
	}
	return table, nil
}
