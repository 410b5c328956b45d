package sync

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MappingRule copies the value at From (a gjson path, modifiers allowed) to
// To (an sjson path). A From wrapped in backticks is a static literal.
type MappingRule struct {
	To        string `yaml:"to"`
	From      string `yaml:"from"`
	Transform string `yaml:"transform"`
}

func (r MappingRule) IsLiteral() bool {
	return len(r.From) >= 2 && r.From[0] == '`' && r.From[len(r.From)-1] == '`'
}

// MappingDefinition is a versioned, declarative transform applied to a case
// before the business specific shaping.
type MappingDefinition struct {
	Reference   string        `yaml:"reference"`
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Passthrough bool          `yaml:"passthrough"`
	Mapping     []MappingRule `yaml:"mapping"`
	Unset       []string      `yaml:"unset"`
}

func (m MappingDefinition) Validate() error {
	if m.Reference == "" {
		return fmt.Errorf("mapping definition has no reference")
	}
	for i, rule := range m.Mapping {
		if rule.To == "" {
			return fmt.Errorf("mapping %s rule %d has no target", m.Reference, i)
		}
		if _, err := sjson.Set("{}", rule.To, ""); err != nil {
			return fmt.Errorf("mapping %s rule %d has an invalid target '%s' %w", m.Reference, i, rule.To, err)
		}
		if rule.From == "" {
			return fmt.Errorf("mapping %s rule %d (%s) has no source", m.Reference, i, rule.To)
		}
		if rule.Transform != "" {
			if _, err := applyTransform(rule.Transform, "", false); err != nil {
				return fmt.Errorf("mapping %s rule %d (%s) %w", m.Reference, i, rule.To, err)
			}
		}
	}
	return nil
}

// Apply runs the definition against source and returns the mapped payload.
func (m MappingDefinition) Apply(source Source) (Payload, error) {
	result := NewPayload()
	if m.Passthrough {
		var err error
		result, err = PayloadFromJSON([]byte(source.Raw()))
		if err != nil {
			return result, err
		}
	}
	if err := MapFields(m.Mapping, source, &result); err != nil {
		return result, err
	}
	for _, path := range m.Unset {
		result.DeleteField(path)
	}
	return result, nil
}

// MapFields maps fields from a source to a destination using the provided rules,
// in rule order. Absent source values are skipped rather than written as null.
func MapFields(rules []MappingRule, source Source, destination Mappable) error {
	for _, rule := range rules {
		// handle static strings as well as dynamic paths
		// escaping the value in backticks allows us to distinguish between the two
		if rule.IsLiteral() {
			destination.SetField(rule.To, rule.From[1:len(rule.From)-1])
			continue
		}
		result := source.Get(rule.From)
		exists := result.Exists() && result.Value() != nil
		if rule.Transform != "" {
			value, err := applyTransform(rule.Transform, result.String(), exists)
			if err != nil {
				return fmt.Errorf("failed to map '%s' %w", rule.To, err)
			}
			if value != "" {
				destination.SetField(rule.To, value)
			}
			continue
		}
		if !exists {
			continue
		}
		switch result.Type {
		case gjson.String:
			if result.Str != "" {
				destination.SetField(rule.To, result.Str)
			}
		case gjson.JSON:
			destination.SetField(rule.To, json.RawMessage(result.Raw))
		default:
			destination.SetField(rule.To, json.RawMessage(strings.TrimSpace(result.Raw)))
		}
	}
	return nil
}
