package sync

const naamgebruikRequestPath = "soapenv:Body.dien:AanvraagRequest.dien:NaamgebruikaanvraagRequest"

// NaamgebruikProperties are the case properties a name use request reads.
var NaamgebruikProperties = []string{"bsn", "gemeentecode", "sub.telefoonnummer", "sub.emailadres", "geselecteerdNaamgebruik"}

// NaamgebruikShaper builds a NaamgebruikaanvraagRequest for the declarant.
// Codes translates the form's selected name use to the VrijBRP code; values
// not in the table pass through.
type NaamgebruikShaper struct {
	Codes map[string]string
}

func (s NaamgebruikShaper) Shape(c Case, p Payload) (Payload, error) {
	props := ExtractProperties(c, NaamgebruikProperties...)
	bsn, err := requireDeclarantBSN(c)
	if err != nil {
		return p, err
	}

	result := p
	w := &payloadWriter{p: &result}
	aanvraag := naamgebruikRequestPath + ".naam:Aanvraaggegevens"
	w.set(aanvraag+".naam:BurgerservicenummerAanvrager", bsn)
	betrokkene := aanvraag + ".naam:NaamgebruikBetrokkenen.naam:NaamgebruikBetrokkene"
	w.set(betrokkene+".naam:Burgerservicenummer", bsn)
	code, exists := props.Get("geselecteerdNaamgebruik")
	w.setIfPresent(betrokkene+".naam:CodeNaamgebruik", s.code(code), exists)
	writeContact(w, naamgebruikRequestPath+".naam:Contactgegevens", props, "sub.emailadres", "sub.telefoonnummer")
	return result, w.err
}

func (s NaamgebruikShaper) code(selected string) string {
	if translated, exists := s.Codes[selected]; exists {
		return translated
	}
	return selected
}
