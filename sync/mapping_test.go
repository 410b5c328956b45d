// go test github.com/commonground/zgw2vrijbrp/sync -v
package sync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingDefinition_Apply(t *testing.T) {
	def := MappingDefinition{
		Reference: "https://vrijbrp.nl/mapping/test.mapping.json",
		Mapping: []MappingRule{
			{To: "zaak.id", From: "identificatie"},
			{To: "zaak.bron", From: "`ZGW`"},
			{To: "zaak.datum", From: "registratiedatum", Transform: "dateFormat:02-01-2006"},
			{To: "zaak.missing", From: "doesNotExist"},
			{To: "zaak.fallback", From: "doesNotExist", Transform: "default:onbekend"},
			{To: "zaak.type", From: "zaaktype"},
			{To: "zaak.bsn", From: "rollen.0.betrokkeneIdentificatie.inpBsn", Transform: "padLeft:9"},
		},
	}
	source := NewSource(testZaak(t, "1", "B0348", "12345678"))
	result, err := def.Apply(source)
	require.NoError(t, err)

	assert.Equal(t, "ZAAK-1", result.Get("zaak.id").String())
	assert.Equal(t, "ZGW", result.Get("zaak.bron").String())
	assert.Equal(t, "01-03-2024", result.Get("zaak.datum").String())
	assert.False(t, result.Exists("zaak.missing"))
	assert.Equal(t, "onbekend", result.Get("zaak.fallback").String())
	assert.Equal(t, "B0348", result.Get("zaak.type.identificatie").String())
	assert.Equal(t, "012345678", result.Get("zaak.bsn").String())
	// keys keep rule order
	assert.True(t, strings.Index(result.Raw(), `"id"`) < strings.Index(result.Raw(), `"bron"`))
}

func TestMappingDefinition_PassthroughAndUnset(t *testing.T) {
	def := MappingDefinition{
		Reference:   "https://vrijbrp.nl/mapping/test.mapping.json",
		Passthrough: true,
		Mapping:     []MappingRule{{To: "extra", From: "`yes`"}},
		Unset:       []string{"rollen", "eigenschappen"},
	}
	result, err := def.Apply(NewSource(testZaak(t, "1", "B0348", "123456789")))
	require.NoError(t, err)
	assert.Equal(t, "ZAAK-1", result.Get("identificatie").String())
	assert.Equal(t, "yes", result.Get("extra").String())
	assert.False(t, result.Exists("rollen"))
	assert.False(t, result.Exists("eigenschappen"))
}

func TestMappingDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		def  MappingDefinition
	}{
		{"no reference", MappingDefinition{}},
		{"no target", MappingDefinition{Reference: "r", Mapping: []MappingRule{{From: "a"}}}},
		{"no source", MappingDefinition{Reference: "r", Mapping: []MappingRule{{To: "a"}}}},
		{"wildcard target", MappingDefinition{Reference: "r", Mapping: []MappingRule{{To: "zaak.*", From: "b"}}}},
		{"unknown transform", MappingDefinition{Reference: "r", Mapping: []MappingRule{{To: "a", From: "b", Transform: "shout"}}}},
		{"bad padLeft", MappingDefinition{Reference: "r", Mapping: []MappingRule{{To: "a", From: "b", Transform: "padLeft:x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.def.Validate())
		})
	}
	assert.NoError(t, MappingDefinition{Reference: "r", Mapping: []MappingRule{{To: "a", From: "b", Transform: "toUpper"}}}.Validate())
}

func TestApplyTransform(t *testing.T) {
	tests := []struct {
		transform, value, expected string
	}{
		{"toLower", "ABC", "abc"},
		{"toUpper", "abc", "ABC"},
		{"trim", "  abc ", "abc"},
		{"default:x", "", "x"},
		{"default:x", "y", "y"},
		{"padLeft:4", "12", "0012"},
		{"padLeft:2", "123", "123"},
		{"dateFormat:20060102", "2024-03-01", "20240301"},
		{"dateFormat:2006-01-02", "01-03-2024", "2024-03-01"},
		{"dateFormat:2006-01-02", "", ""},
	}
	for _, tt := range tests {
		have, err := applyTransform(tt.transform, tt.value, tt.value != "")
		require.NoError(t, err, tt.transform)
		assert.Equal(t, tt.expected, have, tt.transform)
	}
	_, err := applyTransform("dateFormat:2006", "gisteren", true)
	assert.Error(t, err)
}

func TestModifiers(t *testing.T) {
	source := NewSource([]byte(`{
		"phone": "+31 6 12345678",
		"foreign": "+32 470 12 34 56",
		"country": "Netherlands",
		"list": ["a-b", "c"],
		"path": "dossiers/1"
	}`))
	tests := []struct {
		path, expected string
	}{
		{"phone|@phone:31", "0612345678"},
		{"foreign|@phone:31", "+32470123456"},
		{"country|@countryAlpha2", "NL"},
		{"country|@countryName", "Netherlands"},
		{"list|@contains:a-", "true"},
		{"list|@contains:z", "false"},
		{"path|@pathJoinURL:http://localhost/api", "http://localhost/api/dossiers/1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, source.Get(tt.path).String(), tt.path)
	}
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, source.Get("@now:2006-01-02").String())
}

func TestMappingDocumentation(t *testing.T) {
	def := MappingDefinition{
		Reference: "https://vrijbrp.nl/mapping/vrijbrp.ZgwToVrijbrp.mapping.json",
		Name:      "ZGW zaak to VrijBRP",
		Version:   "0.1.0",
		Mapping: []MappingRule{
			{To: "zaak.id", From: "identificatie"},
			{To: "zaak.bron", From: "`ZGW`"},
			{To: "zaak.telefoon", From: "telefoon|@phone:31", Transform: "trim"},
			{To: "zaak.datum", From: "@now"},
		},
		Unset: []string{"b", "a"},
	}
	out, err := GenerateMappingDocumentation(def).FormatCSV()
	require.NoError(t, err)
	expected := strings.Join([]string{
		"# Mapping: ZGW zaak to VrijBRP (https://vrijbrp.nl/mapping/vrijbrp.ZgwToVrijbrp.mapping.json) v0.1.0",
		"Target Path,Source Path,Literal,Mapping Notes",
		"zaak.id,identificatie,,",
		"zaak.bron,ZGW,✓,",
		"zaak.telefoon,telefoon,,Uses @phone:31 modifier | Trims whitespace",
		"zaak.datum,(computed),,Uses @now modifier",
		"a,(unset),,Removed after mapping",
		"b,(unset),,Removed after mapping",
		"",
	}, "\n")
	assert.Equal(t, expected, out)
}
