package sync

// The geheimhouding request is not wrapped in an AanvraagRequest.
const geheimhoudingRequestPath = "soapenv:Body.dien:GeheimhoudingaanvraagRequest"

var GeheimhoudingProperties = []string{"CODE_GEHEIMHOUDING", "BSN_GEHEIMHOUDING", "EMAILADRES", "TELEFOONNUMMER"}

type GeheimhoudingShaper struct{}

func (s GeheimhoudingShaper) Shape(c Case, p Payload) (Payload, error) {
	props := ExtractProperties(c, GeheimhoudingProperties...)
	bsn, err := requireDeclarantBSN(c)
	if err != nil {
		return p, err
	}

	result := p
	w := &payloadWriter{p: &result}
	aanvraag := geheimhoudingRequestPath + ".geh:Aanvraaggegevens"
	w.set(aanvraag+".geh:BurgerservicenummerAanvrager", bsn)
	betrokkene := aanvraag + ".geh:GeheimhoudingBetrokkenen.geh:GeheimhoudingBetrokkene"
	subject, exists := props.Get("BSN_GEHEIMHOUDING")
	w.setIfPresent(betrokkene+".geh:Burgerservicenummer", subject, exists)
	code, exists := props.Get("CODE_GEHEIMHOUDING")
	w.setIfPresent(betrokkene+".geh:CodeGeheimhouding", code, exists)
	writeContact(w, geheimhoudingRequestPath+".geh:Contactgegevens", props, "EMAILADRES", "TELEFOONNUMMER")
	return result, w.err
}
