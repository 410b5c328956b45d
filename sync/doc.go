package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// MappingDocRow represents a single row in the mapping documentation.
type MappingDocRow struct {
	Target     string // sjson target path (e.g., "soapenv:Body.dien:AanvraagRequest.dien:Zaak.com:Zaakidentificatie")
	SourcePath string // gjson source path without modifiers
	IsLiteral  bool   // Whether the value is a static literal
	Notes      string // Modifiers and transform notes
}

// MappingDocumentation contains the rows of one mapping definition.
type MappingDocumentation struct {
	Reference   string
	Name        string
	Version     string
	Passthrough bool
	Rows        []MappingDocRow
	Unset       []string
}

// GenerateMappingDocumentation generates documentation from a mapping definition.
// Rows keep the rule order since that is the element order on the wire.
func GenerateMappingDocumentation(def MappingDefinition) MappingDocumentation {
	doc := MappingDocumentation{
		Reference:   def.Reference,
		Name:        def.Name,
		Version:     def.Version,
		Passthrough: def.Passthrough,
		Rows:        []MappingDocRow{},
		Unset:       append([]string(nil), def.Unset...),
	}
	sort.Strings(doc.Unset)

	for _, rule := range def.Mapping {
		doc.Rows = append(doc.Rows, createMappingDocRow(rule))
	}
	return doc
}

func createMappingDocRow(rule MappingRule) MappingDocRow {
	row := MappingDocRow{Target: rule.To}
	if rule.IsLiteral() {
		row.IsLiteral = true
		row.SourcePath = rule.From[1 : len(rule.From)-1]
		return row
	}

	sourcePath, modifiers := parseSourcePath(rule.From)
	row.SourcePath = sourcePath

	notes := []string{}
	for _, modifier := range modifiers {
		notes = append(notes, formatTransformNote(modifier))
	}
	if rule.Transform != "" {
		notes = append(notes, formatTransformNote(rule.Transform))
	}
	row.Notes = strings.Join(notes, " | ")
	return row
}

// parseSourcePath extracts the source path and modifiers from a mapping value.
// e.g., `eigenschappen.#(naam=="TELEFOONNUMMER").waarde|@phone:31` -> (`eigenschappen.#(naam=="TELEFOONNUMMER").waarde`, ["@phone:31"])
func parseSourcePath(value string) (string, []string) {
	if value == "" {
		return "(computed)", nil
	}
	if strings.HasPrefix(value, "@") {
		// a leading modifier computes the value, e.g. @now
		return "(computed)", []string{value}
	}

	parts := strings.Split(value, "|")
	sourcePath := parts[0]
	var modifiers []string
	for i := 1; i < len(parts); i++ {
		if strings.HasPrefix(parts[i], "@") {
			modifiers = append(modifiers, parts[i])
		}
	}
	return sourcePath, modifiers
}

// formatTransformNote formats a modifier or transform into a human-readable note.
func formatTransformNote(transform string) string {
	switch {
	case transform == "toLower":
		return "Converts to lowercase"
	case transform == "toUpper":
		return "Converts to uppercase"
	case transform == "trim":
		return "Trims whitespace"
	case strings.HasPrefix(transform, "default:"):
		return fmt.Sprintf("Defaults to %q", strings.TrimPrefix(transform, "default:"))
	case strings.HasPrefix(transform, "padLeft:"):
		return fmt.Sprintf("Left pads with zeros to %s digits", strings.TrimPrefix(transform, "padLeft:"))
	case strings.HasPrefix(transform, "dateFormat:"):
		return fmt.Sprintf("Formats date as %s", strings.TrimPrefix(transform, "dateFormat:"))
	case strings.HasPrefix(transform, "@countryName"):
		return "Uses @countryName modifier"
	case strings.HasPrefix(transform, "@countryAlpha2"):
		return "Uses @countryAlpha2 modifier"
	case strings.HasPrefix(transform, "@pathJoinURL"):
		return "Uses @pathJoinURL modifier"
	case strings.HasPrefix(transform, "@phone:"):
		return fmt.Sprintf("Uses @phone:%s modifier", strings.TrimPrefix(transform, "@phone:"))
	case strings.HasPrefix(transform, "@contains:"):
		return fmt.Sprintf("Uses @contains:%s modifier", strings.TrimPrefix(transform, "@contains:"))
	case strings.HasPrefix(transform, "@now"):
		return "Uses @now modifier"
	default:
		return fmt.Sprintf("Transform: %s", transform)
	}
}

// FormatCSV formats the mapping documentation as CSV.
func (d MappingDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	title := d.Reference
	if d.Name != "" {
		title = fmt.Sprintf("%s (%s)", d.Name, d.Reference)
	}
	if d.Version != "" {
		title = fmt.Sprintf("%s v%s", title, d.Version)
	}
	if err := writer.Write([]string{fmt.Sprintf("# Mapping: %s", title)}); err != nil {
		return "", err
	}
	if d.Passthrough {
		if err := writer.Write([]string{"# Passthrough: source fields are copied before the rules run"}); err != nil {
			return "", err
		}
	}

	if err := writer.Write([]string{"Target Path", "Source Path", "Literal", "Mapping Notes"}); err != nil {
		return "", err
	}
	for _, row := range d.Rows {
		literalMark := ""
		if row.IsLiteral {
			literalMark = "✓"
		}
		if err := writer.Write([]string{row.Target, row.SourcePath, literalMark, row.Notes}); err != nil {
			return "", err
		}
	}
	for _, path := range d.Unset {
		if err := writer.Write([]string{path, "(unset)", "", "Removed after mapping"}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
