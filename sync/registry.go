package sync

import (
	"fmt"
	"sort"
)

// Registry resolves the references a handler configuration names.
type Registry struct {
	sources   map[string]SourceConfig
	entities  map[string]EntityConfig
	mappings  map[string]MappingDefinition
	caseTypes map[string]CaseType
}

func NewRegistry(cfg Config, mappings []MappingDefinition) (Registry, error) {
	result := Registry{
		sources:   make(map[string]SourceConfig),
		entities:  make(map[string]EntityConfig),
		mappings:  make(map[string]MappingDefinition),
		caseTypes: make(map[string]CaseType),
	}
	for _, s := range cfg.Sources {
		result.sources[s.Reference] = s
	}
	for _, e := range cfg.Entities {
		result.entities[e.Reference] = e
	}
	// later definitions replace earlier ones so operator mappings can override the shipped ones
	for _, m := range mappings {
		result.mappings[m.Reference] = m
	}
	for identifier, t := range DefaultCaseTypeIdentifiers {
		result.caseTypes[identifier] = t
	}
	for identifier, name := range cfg.CaseTypes {
		t, err := ParseCaseType(name)
		if err != nil {
			return result, fmt.Errorf("invalid case type for zaaktype %s %w", identifier, err)
		}
		result.caseTypes[identifier] = t
	}
	return result, nil
}

func (r Registry) FindSource(reference string) (SourceConfig, error) {
	if s, exists := r.sources[reference]; exists && reference != "" {
		return s, nil
	}
	return SourceConfig{}, &ConfigurationError{Kind: SourceConfiguration, Reference: reference}
}

func (r Registry) FindMapping(reference string) (MappingDefinition, error) {
	if m, exists := r.mappings[reference]; exists && reference != "" {
		return m, nil
	}
	return MappingDefinition{}, &ConfigurationError{Kind: MappingConfiguration, Reference: reference}
}

func (r Registry) FindEntity(reference string) (EntityConfig, error) {
	if e, exists := r.entities[reference]; exists && reference != "" {
		return e, nil
	}
	return EntityConfig{}, &ConfigurationError{Kind: EntityConfiguration, Reference: reference}
}

// CaseTypeFor resolves a zaaktype identifier to the case type it is shaped as.
func (r Registry) CaseTypeFor(identifier string) (CaseType, error) {
	if t, exists := r.caseTypes[identifier]; exists {
		return t, nil
	}
	return CaseTypeNone, &UnknownCaseTypeError{Identifier: identifier}
}

// Mappings returns the known mapping definitions ordered by reference.
func (r Registry) Mappings() []MappingDefinition {
	result := make([]MappingDefinition, 0, len(r.mappings))
	for _, m := range r.mappings {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Reference < result[j].Reference
	})
	return result
}
