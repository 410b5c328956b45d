package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const soapSource = "https://vrijbrp.nl/source/vrijbrp.soap.source.json"

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePublisher struct {
	events []DeliveryEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event DeliveryEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type handlerFixture struct {
	sc       *SyncContext
	store    *MemoryStore
	events   *fakePublisher
	metrics  *Metrics
	logs     *observer.ObservedLogs
	requests *[]capturedRequest
}

// newHandlerFixture loads the shipped configuration with every source
// pointed at a capture server answering status and body.
func newHandlerFixture(t *testing.T, status int, contentType, body string) handlerFixture {
	t.Helper()
	t.Setenv(ConfigEnvVar, "")
	server, requests := captureServer(t, status, contentType, body)
	cfg, defs, err := LoadConfigFromEnvironment(embeddedMappings)
	require.NoError(t, err)
	for i := range cfg.Sources {
		cfg.Sources[i].Location = server.URL
	}

	core, logs := observer.New(zap.DebugLevel)
	result := handlerFixture{
		store:    NewMemoryStore(),
		events:   &fakePublisher{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
		logs:     logs,
		requests: requests,
	}
	result.sc, err = NewSyncContext(cfg, defs,
		WithStore(result.store),
		WithEvents(result.events),
		WithMetrics(result.metrics),
		WithLogger(zap.New(core)),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	return result
}

func (f handlerFixture) saveZaak(t *testing.T, zaak []byte) {
	t.Helper()
	c := NewCase(zaak)
	require.NoError(t, f.store.SaveObject(context.Background(), Object{
		ID:          c.ID(),
		Entity:      testEntity,
		Data:        zaak,
		DateCreated: testNow,
	}))
}

func invocation(id string) []byte {
	return []byte(`{"object":{"_self":{"id":"` + id + `"}}}`)
}

const soapOK = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><r:Antwoord><r:Status>ok</r:Status></r:Antwoord></soap:Body></soap:Envelope>`

func TestHandler_Naamgebruik(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.saveZaak(t, testZaak(t, "1", "B0348", "123456789", "geselecteerdNaamgebruik", "01", "sub.emailadres", "jan@example.com"))

	data := invocation("1")
	result := NewHandler(f.sc, Naamgebruik).Handle(context.Background(), data, HandlerConfiguration{})
	require.NoError(t, result.Err)
	assert.Equal(t, Delivered, result.State)
	assert.Equal(t, data, result.Data)

	betrokkene := naamgebruikRequestPath + ".naam:Aanvraaggegevens.naam:NaamgebruikBetrokkenen.naam:NaamgebruikBetrokkene"
	assert.Equal(t, "123456789", result.Payload.Get(betrokkene+".naam:Burgerservicenummer").String())
	assert.Equal(t, "01", result.Payload.Get(betrokkene+".naam:CodeNaamgebruik").String())
	assert.Equal(t, "ZAAK-1", result.Payload.Get(naamgebruikRequestPath+".naam:Zaakgegevens.com:ZaakId").String())

	require.Len(t, *f.requests, 1)
	body := (*f.requests)[0].Body
	assert.Contains(t, body, `xmlns:naam="http://www.vrijbrp.nl/dienstverlening/naamgebruik"`)
	assert.Contains(t, body, "<naam:Burgerservicenummer>123456789</naam:Burgerservicenummer><naam:CodeNaamgebruik>01</naam:CodeNaamgebruik>")

	s, err := f.store.FindSynchronization(context.Background(), "1", soapSource, testEntity)
	require.NoError(t, err)
	assert.Equal(t, testNow, s.LastSynced)
	assert.Equal(t, Naamgebruik.DefaultMappingReference(), s.Mapping)
	assert.NotEmpty(t, s.Hash)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "naamgebruik", f.events.events[0].CaseType)
	assert.Equal(t, http.StatusOK, f.events.events[0].StatusCode)
	assert.Equal(t, s.Hash, f.events.events[0].Hash)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("naamgebruik", OutcomeDelivered)))
	assert.Equal(t, 1, f.logs.FilterMessage("delivered case").Len())
	sent := f.logs.FilterMessage("sending message").All()
	require.Len(t, sent, 1)
	assert.Equal(t, body, sent[0].ContextMap()["body"])
}

func TestHandler_DispatchesOnZaaktype(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.saveZaak(t, testZaak(t, "1", "B0348", "123456789", "geselecteerdNaamgebruik", "02"))

	result := NewHandler(f.sc, CaseTypeNone).Handle(context.Background(), invocation("1"), HandlerConfiguration{})
	require.NoError(t, result.Err)
	assert.Equal(t, Naamgebruik, result.CaseType)
	betrokkene := naamgebruikRequestPath + ".naam:Aanvraaggegevens.naam:NaamgebruikBetrokkenen.naam:NaamgebruikBetrokkene"
	assert.Equal(t, "02", result.Payload.Get(betrokkene+".naam:CodeNaamgebruik").String())

	s, err := f.store.FindSynchronization(context.Background(), "1", soapSource, testEntity)
	require.NoError(t, err)
	assert.Equal(t, Naamgebruik.DefaultMappingReference(), s.Mapping)
}

// dispatchCaseTypes rebuilds the registry of f with extra zaaktype identifiers.
func (f handlerFixture) dispatchCaseTypes(t *testing.T, caseTypes map[string]string) {
	t.Helper()
	f.sc.Config.CaseTypes = caseTypes
	registry, err := NewRegistry(f.sc.Config, f.sc.Registry.Mappings())
	require.NoError(t, err)
	f.sc.Registry = registry
}

func TestHandler_DispatchUsesCaseTypeDefaults(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.dispatchCaseTypes(t, map[string]string{"B1234": "emigratie"})
	f.saveZaak(t, testZaak(t, "2", "B1234", "999999999",
		CoEmigrantPrefix+".1.BSN", "111",
		CoEmigrantPrefix+".1.ROL", "PARTNER",
		"EMAILADRES", "jan@example.com",
		"TELEFOONNUMMER", "+31 6 12345678",
	))

	result := NewHandler(f.sc, CaseTypeNone).Handle(context.Background(), invocation("2"), HandlerConfiguration{})
	require.NoError(t, result.Err)
	assert.Equal(t, Emigratie, result.CaseType)
	assert.False(t, result.Payload.Exists(naamgebruikRequestPath))

	require.Len(t, *f.requests, 1)
	body := (*f.requests)[0].Body
	assert.NotContains(t, body, "NaamgebruikaanvraagRequest")
	assert.Contains(t, body, "<dien:EmigratieaanvraagRequest>")
	assert.Contains(t, body, "<com:Emailadres>jan@example.com</com:Emailadres><com:TelefoonnummerPrive>0612345678</com:TelefoonnummerPrive>")

	s, err := f.store.FindSynchronization(context.Background(), "2", soapSource, testEntity)
	require.NoError(t, err)
	assert.Equal(t, Emigratie.DefaultMappingReference(), s.Mapping)
}

func TestHandler_DispatchToGeboortePostsJSON(t *testing.T) {
	f := newHandlerFixture(t, http.StatusCreated, "application/json", `{"dossierId":"ZAAK-4"}`)
	f.dispatchCaseTypes(t, map[string]string{"B0255": "geboorte"})
	f.saveZaak(t, testZaak(t, "4", "B0255", "123456789", "geslachtsnaam", "Jansen"))

	result := NewHandler(f.sc, CaseTypeNone).Handle(context.Background(), invocation("4"), HandlerConfiguration{})
	require.NoError(t, result.Err)
	assert.Equal(t, Geboorte, result.CaseType)
	require.Len(t, *f.requests, 1)
	req := (*f.requests)[0]
	assert.Equal(t, "/api/births", req.Path)
	assert.Equal(t, jsonContentType, req.Header.Get("Content-Type"))
	assert.NotContains(t, req.Body, "soapenv")
	assert.Equal(t, "birth", gjson.Get(req.Body, "dossier.type.code").String())
}

func TestHandler_DispatchKeepsExplicitConfiguration(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.dispatchCaseTypes(t, map[string]string{"B1234": "emigratie"})
	f.saveZaak(t, testZaak(t, "2", "B1234", "999999999"))

	configuration := HandlerConfiguration{Mapping: Geheimhouding.DefaultMappingReference()}
	result := NewHandler(f.sc, CaseTypeNone).Handle(context.Background(), invocation("2"), configuration)
	require.NoError(t, result.Err)
	assert.Equal(t, Geheimhouding.DefaultMappingReference(), result.Synchronization.Mapping)

	configuration = HandlerConfiguration{Source: "https://vrijbrp.nl/source/unknown.json"}
	result = NewHandler(f.sc, CaseTypeNone).Handle(context.Background(), invocation("2"), configuration)
	assert.Equal(t, ConfigResolved, result.Stage)
	assert.Equal(t, Emigratie, result.CaseType)
}

func TestHandler_EmigratieCoEmigrants(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.saveZaak(t, testZaak(t, "2", "B1234", "999999999",
		CoEmigrantPrefix+".1.BSN", "111",
		CoEmigrantPrefix+".1.ROL", "PARTNER",
		CoEmigrantPrefix+".2.BSN", "222",
		CoEmigrantPrefix+".2.ROL", "REGISTERED",
	))

	result := NewHandler(f.sc, Emigratie).Handle(context.Background(), invocation("2"), HandlerConfiguration{})
	require.NoError(t, result.Err)

	emigrants := result.Payload.Get(emigratieRequestPath + ".emig:Aanvraaggegevens.emig:MeeEmigranten.emig:MeeEmigrant").Array()
	require.Len(t, emigrants, 2)
	assert.Equal(t, "111", emigrants[0].Get("emig:Burgerservicenummer").String())
	assert.Equal(t, "P", emigrants[0].Get("emig:OmschrijvingAangifte").String())
	assert.Equal(t, "222", emigrants[1].Get("emig:Burgerservicenummer").String())
	assert.Equal(t, "I", emigrants[1].Get("emig:OmschrijvingAangifte").String())

	require.Len(t, *f.requests, 1)
	assert.Contains(t, (*f.requests)[0].Body, "<emig:MeeEmigrant><emig:Burgerservicenummer>111</emig:Burgerservicenummer>")
}

func TestHandler_UnknownMappingAborts(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.saveZaak(t, testZaak(t, "1", "B0348", "123456789"))

	h := NewHandler(f.sc, Naamgebruik)
	configuration := HandlerConfiguration{Mapping: "https://vrijbrp.nl/mapping/does-not-exist.mapping.json"}
	assert.Equal(t, []byte("{}"), h.Run(context.Background(), invocation("1"), configuration))

	result := h.Handle(context.Background(), invocation("1"), configuration)
	assert.Equal(t, Aborted, result.State)
	assert.Equal(t, ConfigResolved, result.Stage)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(result.Err, &cfgErr))
	assert.Equal(t, MappingConfiguration, cfgErr.Kind)

	assert.Empty(t, *f.requests)
	assert.Empty(t, f.store.Synchronizations())
	assert.Equal(t, 2, f.logs.FilterMessage("synchronization aborted").Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Deliveries.WithLabelValues("naamgebruik", OutcomeAborted)))
}

func TestHandler_DeliveryFailureKeepsRecord(t *testing.T) {
	f := newHandlerFixture(t, http.StatusInternalServerError, "text/plain", "storing")
	f.saveZaak(t, testZaak(t, "1", "B0348", "123456789", "geselecteerdNaamgebruik", "01"))
	before := Synchronization{
		ObjectID:          "1",
		Source:            soapSource,
		Entity:            testEntity,
		Hash:              "previous",
		LastSynced:        testNow.Add(-time.Hour),
		SourceLastChanged: testNow.Add(-time.Hour),
		LastChecked:       testNow.Add(-time.Hour),
	}
	require.NoError(t, f.store.SaveSynchronization(context.Background(), before))

	h := NewHandler(f.sc, Naamgebruik)
	result := h.Handle(context.Background(), invocation("1"), HandlerConfiguration{})
	assert.Equal(t, Aborted, result.State)
	assert.Equal(t, Delivered, result.Stage)
	var deliveryErr *DeliveryError
	require.True(t, errors.As(result.Err, &deliveryErr))
	assert.Equal(t, http.StatusInternalServerError, deliveryErr.StatusCode)
	assert.Equal(t, []byte("{}"), h.Run(context.Background(), invocation("1"), HandlerConfiguration{}))

	after, err := f.store.FindSynchronization(context.Background(), "1", soapSource, testEntity)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, f.events.events)

	aborted := f.logs.FilterMessage("synchronization aborted").All()
	require.NotEmpty(t, aborted)
	assert.Equal(t, "storing", aborted[0].ContextMap()["body"])
}

func TestHandler_UnknownCaseType(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.saveZaak(t, testZaak(t, "1", "B0000", "123456789"))

	result := NewHandler(f.sc, CaseTypeNone).Handle(context.Background(), invocation("1"), HandlerConfiguration{})
	assert.Equal(t, BusinessShaped, result.Stage)
	var unknown *UnknownCaseTypeError
	require.True(t, errors.As(result.Err, &unknown))
	assert.Equal(t, "B0000", unknown.Identifier)
	assert.Empty(t, *f.requests)
}

func TestHandler_ObjectFailures(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	h := NewHandler(f.sc, Naamgebruik)

	result := h.Handle(context.Background(), []byte(`{}`), HandlerConfiguration{})
	assert.Equal(t, ObjectLoaded, result.Stage)
	var missing *MissingPropertyError
	assert.True(t, errors.As(result.Err, &missing))

	result = h.Handle(context.Background(), invocation("nope"), HandlerConfiguration{})
	assert.Equal(t, ObjectLoaded, result.Stage)
	assert.ErrorIs(t, result.Err, ErrObjectNotFound)

	// a case without a natural person cannot be shaped
	f.saveZaak(t, testZaak(t, "3", "B0348", ""))
	result = h.Handle(context.Background(), invocation("3"), HandlerConfiguration{})
	assert.Equal(t, BusinessShaped, result.Stage)
	assert.True(t, errors.As(result.Err, &missing))
	assert.Empty(t, *f.requests)
}

func TestHandler_PublishFailureOnlyWarns(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)
	f.events.err = errors.New("no brokers")
	f.saveZaak(t, testZaak(t, "1", "B0348", "123456789"))

	result := NewHandler(f.sc, Naamgebruik).Handle(context.Background(), invocation("1"), HandlerConfiguration{})
	require.NoError(t, result.Err)
	assert.Equal(t, 1, f.logs.FilterMessage("failed to publish delivery event").Len())
}

func TestHandler_GeboortePostsJSON(t *testing.T) {
	f := newHandlerFixture(t, http.StatusCreated, "application/json", `{"dossierId":"ZAAK-4"}`)
	f.saveZaak(t, testZaak(t, "4", "B0000", "123456789",
		"inp.bsn", "111111111",
		"voornamen1", "Jan",
		"geboortedatum1", "2024-02-29",
		"geboortetijd1", "10:15",
		"geslachtsnaam", "Jansen",
	))

	result := NewHandler(f.sc, Geboorte).Handle(context.Background(), invocation("4"), HandlerConfiguration{})
	require.NoError(t, result.Err)
	require.Len(t, *f.requests, 1)
	req := (*f.requests)[0]
	assert.Equal(t, "/api/births", req.Path)
	assert.Equal(t, jsonContentType, req.Header.Get("Content-Type"))
	assert.Equal(t, "birth", gjson.Get(req.Body, "dossier.type.code").String())
	assert.Equal(t, "123456789", gjson.Get(req.Body, "declarant.bsn").String())
	assert.Equal(t, "ZAAK-4", gjson.Get(req.Body, "dossier.dossierId").String())
	assert.Equal(t, "111111111", gjson.Get(req.Body, "mother.bsn").String())
	assert.Equal(t, "123456789", gjson.Get(req.Body, "fatherDuoMother.bsn").String())
	assert.Equal(t, "2024-02-29T10:15:00", gjson.Get(req.Body, "children.0.birthDateTime").String())
	assert.Equal(t, "Jansen", gjson.Get(req.Body, "nameSelection.lastname").String())
}

func TestHandler_ConfigurationSchema(t *testing.T) {
	f := newHandlerFixture(t, http.StatusOK, "text/xml", soapOK)

	schema, err := NewHandler(f.sc, Emigratie).ConfigurationSchema()
	require.NoError(t, err)
	require.True(t, gjson.Valid(schema))
	assert.Equal(t, "ZgwToVrijbrpEmigratieHandler", gjson.Get(schema, "title").String())
	assert.Equal(t, "https://vrijbrp.nl/vrijbrp.zaakEmigratie.handler.json", gjson.Get(schema, "$id").String())
	assert.Equal(t, `["source","mapping","synchronizationEntity"]`, gjson.Get(schema, "required").Raw)
	assert.Equal(t, Emigratie.DefaultMappingReference(), gjson.Get(schema, "properties.mapping.example").String())

	schema, err = NewHandler(f.sc, CaseTypeNone).ConfigurationSchema()
	require.NoError(t, err)
	assert.Equal(t, "ZgwToVrijbrpHandler", gjson.Get(schema, "title").String())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "SynchronizationBound", SynchronizationBound.String())
	assert.Equal(t, "State(42)", State(42).String())
}
