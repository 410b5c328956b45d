package sync

const (
	uittrekselRequestPath = "soapenv:Body.dien:AanvraagRequest.dien:UittrekselaanvraagRequest"

	// ExtractBeneficiaryPrefix groups the people an extract is requested for.
	ExtractBeneficiaryPrefix = "UITTREKSELS.UITTREKSEL"

	// extracts are never free of charge through this channel
	extractFreeOfCharge = "false"
)

// UittrekselShaper builds an UittrekselaanvraagRequest.
//
// A single unindexed beneficiary is written as one UittrekselBetrokkenen
// object; indexed beneficiaries become a list of them, which the envelope
// encoder repeats as sibling UittrekselBetrokkenen elements. VrijBRP accepts
// both, so the two shapes are kept as they are.
type UittrekselShaper struct {
	BeneficiaryOffset int
}

func (s UittrekselShaper) Shape(c Case, p Payload) (Payload, error) {
	props := ExtractProperties(c, AllProperties)
	bsn, err := requireDeclarantBSN(c)
	if err != nil {
		return p, err
	}

	result := p
	w := &payloadWriter{p: &result}
	aanvraag := uittrekselRequestPath + ".uit:Aanvraaggegevens"
	w.set(aanvraag+".uit:BurgerservicenummerAanvrager", bsn)

	betrokkenen := aanvraag + ".uit:UittrekselBetrokkenen"
	if single, exists := SingleGroup(props, ExtractBeneficiaryPrefix); exists {
		if result.Exists(betrokkenen) {
			w.append(betrokkenen, extractBeneficiary(single))
		} else {
			w.setRaw(betrokkenen, extractBeneficiary(single).Raw())
		}
	} else {
		for _, group := range IndexedGroups(props, ExtractBeneficiaryPrefix, s.BeneficiaryOffset) {
			w.append(betrokkenen, extractBeneficiary(group))
		}
	}

	writeContact(w, uittrekselRequestPath+".uit:Contactgegevens", props, "EMAILADRES", "TELEFOONNUMMER")
	return result, w.err
}

func extractBeneficiary(group Properties) Payload {
	result := NewPayload()
	w := &payloadWriter{p: &result}
	bsn, exists := group.Get("BSN")
	w.setIfPresent("uit:UittrekselBetrokkene.uit:Burgerservicenummer", bsn, exists)
	code, exists := group.Get("CODE")
	w.setIfPresent("uit:UittrekselBetrokkene.uit:Uittrekselcode", code, exists)
	w.set("uit:UittrekselBetrokkene.uit:IndicatieGratis", extractFreeOfCharge)
	return result
}
