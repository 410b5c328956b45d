package sync

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

// CaseType is the closed set of business processes a case can be shaped for.
// The zero value means the handler dispatches on the zaaktype identifier.
type CaseType int

const (
	CaseTypeNone CaseType = iota
	Naamgebruik
	Geheimhouding
	Emigratie
	Uittreksel
	Geboorte
)

// DefaultCaseTypeIdentifiers maps zaaktype identifiers to case types when
// configuration adds nothing else.
var DefaultCaseTypeIdentifiers = map[string]CaseType{
	"B0348": Naamgebruik,
}

func CaseTypes() []CaseType {
	return []CaseType{Naamgebruik, Geheimhouding, Emigratie, Uittreksel, Geboorte}
}

func (t CaseType) String() string {
	switch t {
	case Naamgebruik:
		return "naamgebruik"
	case Geheimhouding:
		return "geheimhouding"
	case Emigratie:
		return "emigratie"
	case Uittreksel:
		return "uittreksel"
	case Geboorte:
		return "geboorte"
	default:
		return "zaak"
	}
}

func ParseCaseType(s string) (CaseType, error) {
	for _, t := range CaseTypes() {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return CaseTypeNone, &UnknownCaseTypeError{Identifier: s}
}

// DefaultMappingReference returns the reference of the mapping definition
// shipped for this case type, e.g. https://vrijbrp.nl/mapping/vrijbrp.ZgwToVrijbrpEmigratie.mapping.json.
func (t CaseType) DefaultMappingReference() string {
	name := ""
	if t != CaseTypeNone {
		name = strcase.ToCamel(t.String())
	}
	return fmt.Sprintf("https://vrijbrp.nl/mapping/vrijbrp.ZgwToVrijbrp%s.mapping.json", name)
}

// Shaper returns the business specific payload shaper for t, configured from cfg.
func (t CaseType) Shaper(cfg Config) Shaper {
	switch t {
	case Naamgebruik:
		return NaamgebruikShaper{Codes: cfg.NaamgebruikCodes}
	case Geheimhouding:
		return GeheimhoudingShaper{}
	case Emigratie:
		return EmigratieShaper{
			CoEmigrantOffset:  cfg.IndexOffset(Emigratie, CoEmigrantIndexOffset),
			AddressLineOffset: AddressLineIndexOffset,
		}
	case Uittreksel:
		return UittrekselShaper{BeneficiaryOffset: cfg.IndexOffset(Uittreksel, ExtractBeneficiaryIndexOffset)}
	case Geboorte:
		return GeboorteShaper{ChildOffset: cfg.IndexOffset(Geboorte, ChildIndexOffset)}
	default:
		return nil
	}
}

// Shaper enriches a generically mapped payload with case properties.
// Shapers only add keys; they never remove what the mapping produced.
type Shaper interface {
	Shape(c Case, p Payload) (Payload, error)
}
