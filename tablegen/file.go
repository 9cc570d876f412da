package tablegen

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
)

// Parse decodes a table description written as YAML or JSON. Field names are
// the JSON ones (name, options, columns, foreignKeys).
func Parse(data []byte) (TableData, error) {
	var td TableData
	if err := yaml.Unmarshal(data, &td); err != nil {
		return TableData{}, fmt.Errorf("failed to parse table description: %w", err)
	}
	return td, nil
}

// LoadFile reads a table description from disk.
func LoadFile(path string) (TableData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TableData{}, fmt.Errorf("failed to read table description %s: %w", path, err)
	}
	td, err := Parse(data)
	if err != nil {
		return TableData{}, fmt.Errorf("%s: %w", path, err)
	}
	return td, nil
}
