package sync

import (
	"errors"
	"fmt"
)

var (
	ErrObjectNotFound          = errors.New("object not found")
	ErrSynchronizationNotFound = errors.New("synchronization not found")
)

// ConfigurationKind names the reference a handler configuration failed to resolve.
type ConfigurationKind string

const (
	SourceConfiguration  ConfigurationKind = "source"
	MappingConfiguration ConfigurationKind = "mapping"
	EntityConfiguration  ConfigurationKind = "synchronizationEntity"
)

// ConfigurationError reports a reference that is missing or does not resolve.
type ConfigurationError struct {
	Kind      ConfigurationKind
	Reference string
}

func (e *ConfigurationError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("no %s configured", e.Kind)
	}
	return fmt.Sprintf("no %s found with reference: %s", e.Kind, e.Reference)
}

type UnknownCaseTypeError struct {
	Identifier string
}

func (e *UnknownCaseTypeError) Error() string {
	return fmt.Sprintf("unknown case type %q", e.Identifier)
}

// MissingPropertyError reports a value a payload cannot be built without.
type MissingPropertyError struct {
	Name string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("missing required property %q", e.Name)
}

// DeliveryError is a failed push to a source. StatusCode is zero for
// transport failures.
type DeliveryError struct {
	Source     string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery to %s failed with status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("delivery to %s failed: %v", e.Source, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
