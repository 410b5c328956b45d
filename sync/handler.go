package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// State is a stage of a handler run.
type State int

const (
	ConfigResolved State = iota
	ObjectLoaded
	GenericMapped
	BusinessShaped
	SynchronizationBound
	Delivered
	Aborted
)

func (s State) String() string {
	switch s {
	case ConfigResolved:
		return "ConfigResolved"
	case ObjectLoaded:
		return "ObjectLoaded"
	case GenericMapped:
		return "GenericMapped"
	case BusinessShaped:
		return "BusinessShaped"
	case SynchronizationBound:
		return "SynchronizationBound"
	case Delivered:
		return "Delivered"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of a handler run. State is Delivered or Aborted;
// Stage is the stage that completed last or, on abort, the one that failed.
type Result struct {
	State           State
	Stage           State
	CaseType        CaseType
	Data            []byte
	Payload         Payload
	Synchronization *Synchronization
	Err             error
}

// ObjectIDPath locates the case id in the invocation payload.
const ObjectIDPath = "object._self.id"

var emptyResult = []byte("{}")

// Handler turns a stored case into a delivery for one source. A zero
// CaseType dispatches on the zaaktype identifier.
type Handler struct {
	*SyncContext
	CaseType CaseType
}

func NewHandler(sc *SyncContext, t CaseType) Handler {
	return Handler{SyncContext: sc, CaseType: t}
}

// Run returns data on success and {} on any failure.
func (h Handler) Run(ctx context.Context, data []byte, configuration HandlerConfiguration) []byte {
	result := h.Handle(ctx, data, configuration)
	if result.Err != nil {
		return emptyResult
	}
	return result.Data
}

// Handle runs the pipeline for the object referenced by data. configuration
// is merged over the configured defaults for the handler's case type; a
// dispatching handler resolves them once the zaaktype is known.
func (h Handler) Handle(ctx context.Context, data []byte, configuration HandlerConfiguration) Result {
	var cfg HandlerConfiguration
	logger := h.Logger.With(zap.String("handler", h.CaseType.String()))
	result := Result{State: Aborted, CaseType: h.CaseType}
	abort := func(stage State, err error) Result {
		result.Stage = stage
		result.Err = err
		fields := []zap.Field{zap.Stringer("stage", stage), zap.Error(err)}
		var deliveryErr *DeliveryError
		if errors.As(err, &deliveryErr) {
			fields = append(fields, zap.Int("status", deliveryErr.StatusCode), zap.String("body", deliveryErr.Body))
		}
		logger.Error("synchronization aborted", fields...)
		h.Metrics.IncrementOutcome(result.CaseType.String(), OutcomeAborted)
		return result
	}

	var (
		source  SourceConfig
		mapping MappingDefinition
		entity  EntityConfig
	)
	// explicit configuration wins over the defaults of the case type
	resolve := func(t CaseType) (err error) {
		cfg = h.Config.HandlerDefaults(t).Merge(configuration)
		if source, err = h.Registry.FindSource(cfg.Source); err != nil {
			return err
		}
		if mapping, err = h.Registry.FindMapping(cfg.Mapping); err != nil {
			return err
		}
		entity, err = h.Registry.FindEntity(cfg.SynchronizationEntity)
		return err
	}

	caseType := h.CaseType
	if caseType != CaseTypeNone {
		if err := resolve(caseType); err != nil {
			return abort(ConfigResolved, err)
		}
	}

	id := gjson.GetBytes(data, ObjectIDPath)
	if !id.Exists() || id.String() == "" {
		return abort(ObjectLoaded, &MissingPropertyError{Name: ObjectIDPath})
	}
	object, err := h.Store.FindObject(ctx, id.String())
	if err != nil {
		return abort(ObjectLoaded, fmt.Errorf("failed to load object %s: %w", id.String(), err))
	}
	logger = logger.With(zap.String("object", object.ID))
	c := NewCase(object.Data)

	if caseType == CaseTypeNone {
		identifier, exists := c.TypeIdentifier()
		if !exists {
			return abort(BusinessShaped, &MissingPropertyError{Name: "zaaktype.identificatie"})
		}
		if caseType, err = h.Registry.CaseTypeFor(identifier); err != nil {
			return abort(BusinessShaped, err)
		}
		result.CaseType = caseType
		if err = resolve(caseType); err != nil {
			return abort(ConfigResolved, err)
		}
	}

	mapped, err := mapping.Apply(c.Source)
	if err != nil {
		return abort(GenericMapped, fmt.Errorf("failed to apply mapping %s: %w", mapping.Reference, err))
	}
	logger.Debug("mapped case", zap.String("mapping", mapping.Reference))

	shaped, err := caseType.Shaper(h.Config).Shape(c, mapped)
	if err != nil {
		return abort(BusinessShaped, fmt.Errorf("failed to shape %s payload: %w", caseType, err))
	}
	result.Payload = shaped

	recorder := h.Recorder()
	synchronization, err := recorder.Bind(ctx, object.ID, source.Reference, entity.Reference, mapping.Reference)
	if err != nil {
		return abort(SynchronizationBound, err)
	}
	result.Synchronization = &synchronization

	start := h.Now()
	response, err := h.Pusher.Push(ctx, source, cfg.Location, shaped)
	h.Metrics.ObservePushLatency(source.Reference, h.Now().Sub(start))
	if err != nil {
		return abort(Delivered, err)
	}
	if err = recorder.Record(ctx, &synchronization, response.Decoded, object); err != nil {
		return abort(Delivered, err)
	}

	event := DeliveryEvent{
		ObjectID:    object.ID,
		CaseType:    caseType.String(),
		Source:      source.Reference,
		Entity:      entity.Reference,
		Mapping:     mapping.Reference,
		StatusCode:  response.StatusCode,
		Hash:        synchronization.Hash,
		DeliveredAt: synchronization.LastSynced,
	}
	if err = h.Events.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish delivery event", zap.Error(err))
	}

	logger.Info("delivered case",
		zap.Stringer("caseType", caseType),
		zap.String("source", source.Reference),
		zap.Int("status", response.StatusCode),
		zap.String("hash", synchronization.Hash))
	h.Metrics.IncrementOutcome(caseType.String(), OutcomeDelivered)

	result.State = Delivered
	result.Stage = Delivered
	result.Data = data
	return result
}

// ConfigurationSchema returns the JSON schema of the handler configuration.
func (h Handler) ConfigurationSchema() (string, error) {
	name := ""
	if h.CaseType != CaseTypeNone {
		name = strcase.ToCamel(h.CaseType.String())
	}
	defaults := h.Config.HandlerDefaults(h.CaseType)
	example := func(value, fallback string) string {
		if value != "" {
			return value
		}
		return fallback
	}
	return buildSchema([]schemaField{
		{"$id", fmt.Sprintf("https://vrijbrp.nl/vrijbrp.zaak%s.handler.json", name)},
		{"$schema", "https://json-schema.org/draft/2020-12/schema"},
		{"title", fmt.Sprintf("ZgwToVrijbrp%sHandler", name)},
		{"description", "This handler posts zaak eigenschappen from ZGW to VrijBRP"},
		{"type", "object"},
		{"required", []string{"source", "mapping", "synchronizationEntity"}},
		{"properties.source.type", "string"},
		{"properties.source.description", "The reference of the source we will send a request to"},
		{"properties.source.example", example(defaults.Source, "https://vrijbrp.nl/source/vrijbrp.soap.source.json")},
		{"properties.mapping.type", "string"},
		{"properties.mapping.description", "The reference of the mapping we will use before sending the data to the source"},
		{"properties.mapping.example", example(defaults.Mapping, h.CaseType.DefaultMappingReference())},
		{"properties.synchronizationEntity.type", "string"},
		{"properties.synchronizationEntity.description", "The reference of the entity we use as trigger for this handler, we need this to find a synchronization object"},
		{"properties.synchronizationEntity.example", example(defaults.SynchronizationEntity, "https://vng.opencatalogi.nl/schemas/zrc.zaak.schema.json")},
		{"properties.location.type", "string"},
		{"properties.location.description", "The path appended to the source location"},
	})
}

type schemaField struct {
	path  string
	value interface{}
}

func buildSchema(fields []schemaField) (string, error) {
	result := "{}"
	for _, f := range fields {
		var err error
		if result, err = sjson.Set(result, f.path, f.value); err != nil {
			return "", fmt.Errorf("failed to build schema at '%s' %w", f.path, err)
		}
	}
	return result, nil
}
