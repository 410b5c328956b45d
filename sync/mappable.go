package sync

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Mappable provides a common interface for types that can be mapped.
// This enables shared field mapping logic.
type Mappable interface {
	GetFields() map[string]interface{}
	SetField(key string, value interface{})
	DeleteField(key string)
}

// Payload is an ordered JSON document addressed by sjson/gjson paths.
// Keys keep their insertion order, which the envelope encoder turns into
// element order.
type Payload struct {
	raw string
}

func NewPayload() Payload {
	return Payload{raw: "{}"}
}

func PayloadFromJSON(json []byte) (Payload, error) {
	if !gjson.ValidBytes(json) {
		return Payload{}, fmt.Errorf("invalid payload json")
	}
	return Payload{raw: string(json)}, nil
}

func (p Payload) Raw() string {
	if p.raw == "" {
		return "{}"
	}
	return p.raw
}

func (p Payload) Bytes() []byte {
	return []byte(p.Raw())
}

func (p Payload) Get(path string) gjson.Result {
	return gjson.Get(p.Raw(), path)
}

func (p Payload) Exists(path string) bool {
	return p.Get(path).Exists()
}

// Set writes value at path, creating intermediate objects.
func (p *Payload) Set(path string, value interface{}) error {
	raw, err := sjson.Set(p.Raw(), path, value)
	if err != nil {
		return fmt.Errorf("failed to set '%s' %w", path, err)
	}
	p.raw = raw
	return nil
}

// SetIfPresent writes value only when present is true and value is not empty.
func (p *Payload) SetIfPresent(path string, value string, present bool) error {
	if !present || value == "" {
		return nil
	}
	return p.Set(path, value)
}

func (p *Payload) SetRaw(path string, raw string) error {
	result, err := sjson.SetRaw(p.Raw(), path, raw)
	if err != nil {
		return fmt.Errorf("failed to set '%s' %w", path, err)
	}
	p.raw = result
	return nil
}

// Append adds element to the array at path, creating the array if needed.
func (p *Payload) Append(path string, element Payload) error {
	existing := p.Get(path)
	if !existing.IsArray() {
		raw := "[]"
		if existing.Exists() {
			// a single element already there becomes the first of the list
			raw = "[" + existing.Raw + "]"
		}
		if err := p.SetRaw(path, raw); err != nil {
			return err
		}
	}
	return p.SetRaw(path+".-1", element.Raw())
}

func (p *Payload) GetFields() map[string]interface{} {
	if m, ok := gjson.Parse(p.Raw()).Value().(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func (p *Payload) SetField(key string, value interface{}) {
	// MappingDefinition.Validate rejects targets sjson cannot write
	_ = p.Set(key, value)
}

func (p *Payload) DeleteField(key string) {
	if raw, err := sjson.Delete(p.Raw(), key); err == nil {
		p.raw = raw
	}
}
