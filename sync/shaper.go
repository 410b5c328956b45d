package sync

// payloadWriter keeps the first write error so shapers can write a block of
// fields and check once.
type payloadWriter struct {
	p   *Payload
	err error
}

func (w *payloadWriter) set(path string, value interface{}) {
	if w.err == nil {
		w.err = w.p.Set(path, value)
	}
}

func (w *payloadWriter) setIfPresent(path string, value string, present bool) {
	if w.err == nil {
		w.err = w.p.SetIfPresent(path, value, present)
	}
}

func (w *payloadWriter) setIfAbsent(path string, value string, present bool) {
	if !w.p.Exists(path) {
		w.setIfPresent(path, value, present)
	}
}

func (w *payloadWriter) setRaw(path string, raw string) {
	if w.err == nil {
		w.err = w.p.SetRaw(path, raw)
	}
}

func (w *payloadWriter) append(path string, element Payload) {
	if w.err == nil {
		w.err = w.p.Append(path, element)
	}
}

// writeContact writes a com:Contactgegevens block. Missing values and values
// the mapping already wrote are left alone.
func writeContact(w *payloadWriter, path string, props Properties, emailKey, phoneKey string) {
	email, hasEmail := props.Get(emailKey)
	w.setIfAbsent(path+".com:Emailadres", email, hasEmail)
	phone, hasPhone := props.Get(phoneKey)
	w.setIfAbsent(path+".com:TelefoonnummerPrive", phone, hasPhone)
}

func requireDeclarantBSN(c Case) (string, error) {
	bsn, exists := DeclarantBSN(c)
	if !exists {
		return "", &MissingPropertyError{Name: "rollen[" + NaturalPersonRoleType + "].betrokkeneIdentificatie.inpBsn"}
	}
	return bsn, nil
}
