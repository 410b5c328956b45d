package sync

import (
	"github.com/tidwall/gjson"
)

// Source wraps a parsed JSON document and exposes typed path lookups.
// The second return value reports whether the path held a non-null value.
type Source struct {
	data gjson.Result
}

func NewSource(json []byte) Source {
	return Source{data: gjson.ParseBytes(json)}
}

func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

func (s Source) IntForPath(path string) (int64, bool) {
	result := s.data.Get(path)
	return result.Int(), result.Exists() && (result.Value() != nil)
}

func (s Source) BoolForPath(path string) (bool, bool) {
	result := s.data.Get(path)
	return result.Bool(), result.Exists() && (result.Value() != nil)
}

func (s Source) Get(path string) gjson.Result {
	return s.data.Get(path)
}

func (s Source) Raw() string {
	return s.data.Raw
}

// Case is a ZGW zaak as stored in the object store.
type Case struct {
	Source
}

// Property is a single zaak eigenschap.
type Property struct {
	Name  string
	Value string
}

// Role is a single zaak rol.
type Role struct {
	Type string
	BSN  string
}

func NewCase(json []byte) Case {
	return Case{Source: NewSource(json)}
}

// ID returns the object id, preferring the gateway metadata over the plain id.
func (c Case) ID() string {
	if id, exists := c.StringForPath("_self.id"); exists {
		return id
	}
	id, _ := c.StringForPath("id")
	return id
}

func (c Case) TypeIdentifier() (string, bool) {
	return c.StringForPath("zaaktype.identificatie")
}

// Properties returns the eigenschappen in document order. A property without
// a direct name takes the name of its linked eigenschap definition.
func (c Case) Properties() []Property {
	var result []Property
	c.Get("eigenschappen").ForEach(func(_, eigenschap gjson.Result) bool {
		name := eigenschap.Get("naam")
		if name.Value() == nil {
			linked := eigenschap.Get("eigenschap.naam")
			if linked.Value() == nil {
				return true
			}
			name = linked
		}
		result = append(result, Property{
			Name:  name.String(),
			Value: eigenschap.Get("waarde").String(),
		})
		return true
	})
	return result
}

func (c Case) Roles() []Role {
	var result []Role
	c.Get("rollen").ForEach(func(_, rol gjson.Result) bool {
		result = append(result, Role{
			Type: rol.Get("betrokkeneType").String(),
			BSN:  rol.Get("betrokkeneIdentificatie.inpBsn").String(),
		})
		return true
	})
	return result
}
