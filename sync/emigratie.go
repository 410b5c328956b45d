package sync

import "strconv"

const (
	emigratieRequestPath = "soapenv:Body.dien:AanvraagRequest.dien:EmigratieaanvraagRequest"

	// CoEmigrantPrefix groups the family members moving along.
	CoEmigrantPrefix = "MEEVERHUIZENDE_GEZINSLEDEN.MEEVERHUIZEND_GEZINSLID"

	applicantDeclarationCode = "I"
	emigrationDuration       = "l"
)

// EmigratieShaper builds an EmigratieaanvraagRequest with the applicant, the
// co-emigrants and the foreign address.
type EmigratieShaper struct {
	CoEmigrantOffset  int
	AddressLineOffset int
}

func (s EmigratieShaper) Shape(c Case, p Payload) (Payload, error) {
	props := ExtractProperties(c, AllProperties)
	bsn, err := requireDeclarantBSN(c)
	if err != nil {
		return p, err
	}

	result := p
	w := &payloadWriter{p: &result}
	aanvraag := emigratieRequestPath + ".emig:Aanvraaggegevens"
	w.set(aanvraag+".emig:BurgerservicenummerAanvrager", bsn)
	date, exists := props.Get("DATUM_VERTREK")
	w.setIfPresent(aanvraag+".emig:Emigratiedatum", date, exists)
	country, exists := props.Get("LANDCODE")
	w.setIfPresent(aanvraag+".emig:LandcodeEmigratie", country, exists)

	for n := s.AddressLineOffset; ; n++ {
		line, exists := props.Get("ADRESREGEL" + strconv.Itoa(n))
		if !exists {
			break
		}
		w.setIfPresent(aanvraag+".emig:AdresBuitenland.emig:AdresBuitenland"+strconv.Itoa(n), line, exists)
	}

	for _, emigrant := range s.coEmigrants(props) {
		w.append(aanvraag+".emig:MeeEmigranten.emig:MeeEmigrant", emigrant)
	}

	contact := emigratieRequestPath + ".emig:Contactgegevens"
	writeContact(w, contact, props, "EMAILADRES", "TELEFOONNUMMER")
	return result, w.err
}

// coEmigrants lists the applicant first, then either the single unindexed
// family member or the indexed ones.
func (s EmigratieShaper) coEmigrants(props Properties) []Payload {
	var result []Payload
	if applicant, exists := props.Get("BSN"); exists && applicant != "" {
		result = append(result, coEmigrant(applicant, applicantDeclarationCode))
	}
	if single, exists := SingleGroup(props, CoEmigrantPrefix); exists {
		return append(result, coEmigrant(single.Value("BSN"), TranslateRole(single.Value("ROL"))))
	}
	for _, member := range IndexedGroups(props, CoEmigrantPrefix, s.CoEmigrantOffset) {
		result = append(result, coEmigrant(member.Value("BSN"), TranslateRole(member.Value("ROL"))))
	}
	return result
}

func coEmigrant(bsn, role string) Payload {
	result := NewPayload()
	w := &payloadWriter{p: &result}
	w.setIfPresent("emig:Burgerservicenummer", bsn, true)
	w.setIfPresent("emig:OmschrijvingAangifte", role, true)
	w.set("emig:Duur", emigrationDuration)
	return result
}
