package classifier

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClassMapping maps source-dataset labels (TACO-style category names)
// onto the four target classes. Unmapped labels resolve to the fallback.
type ClassMapping struct {
	Mapping  map[string]string `yaml:"mapping"`
	Fallback string            `yaml:"fallback"`
}

// DefaultClassMapping covers the common TACO categories.
func DefaultClassMapping() *ClassMapping {
	return &ClassMapping{
		Fallback: "Mixed Waste",
		Mapping: map[string]string{
			"Plastic bag":        "Plastic",
			"Plastic bottle":     "Plastic",
			"Plastic container":  "Plastic",
			"Plastic cup":        "Plastic",
			"Plastic lid":        "Plastic",
			"Plastic straw":      "Plastic",
			"Plastic utensils":   "Plastic",
			"Battery":            "Chemical",
			"Aerosol":            "Chemical",
			"Paint bucket":       "Chemical",
			"Chemical container": "Chemical",
			"Oil container":      "Oil",
			"Motor oil":          "Oil",
			"Cooking oil":        "Oil",
			"Mixed waste":        "Mixed Waste",
			"General litter":     "Mixed Waste",
		},
	}
}

// LoadClassMapping parses a mapping YAML and validates every target.
func LoadClassMapping(path string) (*ClassMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m ClassMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse class mapping: %w", err)
	}

	if m.Fallback == "" {
		m.Fallback = "Mixed Waste"
	}
	if !validClass(m.Fallback) {
		return nil, fmt.Errorf("mapping fallback %q is not a known class", m.Fallback)
	}
	for label, target := range m.Mapping {
		if !validClass(target) {
			return nil, fmt.Errorf("mapping for %q targets unknown class %q", label, target)
		}
	}

	return &m, nil
}

// Resolve returns the target class for a source label.
func (m *ClassMapping) Resolve(label string) string {
	if target, ok := m.Mapping[label]; ok {
		return target
	}
	return m.Fallback
}

func validClass(name string) bool {
	for _, c := range ClassNames {
		if c == name {
			return true
		}
	}
	return false
}
