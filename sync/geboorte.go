package sync

import "time"

const birthDateTimeLayout = "2006-01-02T15:04:05"

var birthTimeLayouts = []string{"15:04:05", "15:04", time.RFC3339, "2006-01-02T15:04:05"}

// GeboorteShaper builds the JSON birth declaration for the VrijBRP REST API.
// Children are read from properties carrying a trailing digit, voornamen1,
// geboortedatum1 and so on.
type GeboorteShaper struct {
	ChildOffset int
}

func (s GeboorteShaper) Shape(c Case, p Payload) (Payload, error) {
	flat, children := SuffixGroups(ExtractProperties(c, AllProperties), s.ChildOffset)

	result := p
	w := &payloadWriter{p: &result}
	relation, exists := flat.Get("relatie")
	w.setIfPresent("qualificationForDeclaringType", relation, exists)
	phone, exists := flat.Get("sub.telefoonnummer")
	w.setIfPresent("declarant.contactInformation.telephoneNumber", phone, exists)
	email, exists := flat.Get("sub.emailadres")
	w.setIfPresent("declarant.contactInformation.email", email, exists)

	declarant := result.Get("declarant.bsn").String()
	if declarant == "" {
		declarant, _ = DeclarantBSN(c)
		w.setIfPresent("declarant.bsn", declarant, true)
	}

	if mother, exists := flat.Get("inp.bsn"); exists && mother != "" {
		w.set("mother.bsn", mother)
		w.setIfPresent("fatherDuoMother.bsn", declarant, true)
	} else {
		w.setIfPresent("mother.bsn", declarant, true)
		if contact := result.Get("declarant.contactInformation"); contact.Exists() {
			w.setRaw("mother.contactInformation", contact.Raw)
		}
	}

	for _, child := range children {
		w.append("children", birthChild(child))
	}

	lastname, exists := flat.Get("geslachtsnaam")
	w.setIfPresent("nameSelection.lastname", lastname, exists)
	prefix, exists := flat.Get("voorvoegselGeslachtsnaam")
	w.setIfPresent("nameSelection.prefix", prefix, exists)
	return result, w.err
}

func birthChild(child Properties) Payload {
	result := NewPayload()
	w := &payloadWriter{p: &result}
	firstname, exists := child.Get("voornamen")
	w.setIfPresent("firstname", firstname, exists)
	gender, exists := child.Get("geslachtsaanduiding")
	w.setIfPresent("gender", gender, exists)
	if birth, exists := birthDateTime(child.Value("geboortedatum"), child.Value("geboortetijd")); exists {
		w.set("birthDateTime", birth)
	}
	return result
}

// birthDateTime combines a date and an optional time of day. A missing time
// means midnight.
func birthDateTime(date, clock string) (string, bool) {
	d, exists := parseCaseDate(date)
	if !exists {
		return "", false
	}
	var t time.Time
	for _, layout := range birthTimeLayouts {
		if parsed, err := time.Parse(layout, clock); err == nil {
			t = parsed
			break
		}
	}
	combined := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	return combined.Format(birthDateTimeLayout), true
}
