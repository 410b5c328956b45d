package sync

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/config"
)

type Config struct {
	Sources  []SourceConfig
	Entities []EntityConfig
	Envelope Envelope
	// CaseTypes maps zaaktype identifiers to case type names, on top of
	// DefaultCaseTypeIdentifiers.
	CaseTypes        map[string]string
	NaamgebruikCodes map[string]string
	// IndexOffsets overrides the repeated group offset per case type name.
	IndexOffsets map[string]int
	// Handlers holds the default configuration per handler name.
	Handlers  map[string]HandlerConfiguration
	Store     StoreConfig
	Cache     CacheConfig
	Events    EventsConfig
	Recording RecordingConfig
}

// SourceConfig is an external system deliveries are pushed to.
type SourceConfig struct {
	Reference string            `yaml:"reference"`
	Name      string            `yaml:"name"`
	Location  string            `yaml:"location"`
	Format    SourceFormat      `yaml:"format"`
	Headers   map[string]string `yaml:"headers"`
	Auth      SourceAuth        `yaml:"auth"`
}

type SourceFormat string

const (
	XMLFormat  SourceFormat = "xml"
	JSONFormat SourceFormat = "json"
)

type SourceAuth struct {
	Type               string `yaml:"type"` // none, apikey, basic or jwt-HS256
	Header             string `yaml:"header"`
	Key                string `yaml:"key"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	ClientID           string `yaml:"clientId"`
	Secret             string `yaml:"secret"`
	UserID             string `yaml:"userId"`
	UserRepresentation string `yaml:"userRepresentation"`
}

// EntityConfig is a schema whose objects trigger synchronizations.
type EntityConfig struct {
	Reference string `yaml:"reference"`
	Name      string `yaml:"name"`
}

// HandlerConfiguration references the records a handler run needs. Source,
// Mapping and SynchronizationEntity are required.
type HandlerConfiguration struct {
	Source                string `yaml:"source" json:"source"`
	Mapping               string `yaml:"mapping" json:"mapping"`
	SynchronizationEntity string `yaml:"synchronizationEntity" json:"synchronizationEntity"`
	Location              string `yaml:"location" json:"location,omitempty"`
}

// Merge returns c with every non-empty field of overrides applied.
func (c HandlerConfiguration) Merge(overrides HandlerConfiguration) HandlerConfiguration {
	if overrides.Source != "" {
		c.Source = overrides.Source
	}
	if overrides.Mapping != "" {
		c.Mapping = overrides.Mapping
	}
	if overrides.SynchronizationEntity != "" {
		c.SynchronizationEntity = overrides.SynchronizationEntity
	}
	if overrides.Location != "" {
		c.Location = overrides.Location
	}
	return c
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory or postgres
	DSN    string `yaml:"dsn"`
}

type CacheConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RecordingConfig struct {
	Requests bool   `yaml:"requests"`
	Dir      string `yaml:"dir"`
}

// IndexOffset returns the configured offset for t or def.
func (c Config) IndexOffset(t CaseType, def int) int {
	if offset, exists := c.IndexOffsets[t.String()]; exists {
		return offset
	}
	return def
}

// HandlerDefaults returns the configured defaults for t, falling back to the
// shipped mapping for that case type.
func (c Config) HandlerDefaults(t CaseType) HandlerConfiguration {
	result := c.Handlers["default"]
	result = result.Merge(HandlerConfiguration{Mapping: t.DefaultMappingReference()})
	if handler, exists := c.Handlers[t.String()]; exists {
		result = result.Merge(handler)
	}
	return result
}

type CompositeEnvVar interface {
	LookupEnv(child string) (string, bool)
}

// JSONCompositeEnvVar looks values up in a JSON object held by the Parent
// environment variable. With Fallback set, names it does not hold are looked
// up in the process environment.
type JSONCompositeEnvVar struct {
	Parent   string
	Fallback bool
}

func (c JSONCompositeEnvVar) LookupEnv(child string) (string, bool) {
	if c.Parent != "" {
		s := os.Getenv(c.Parent)
		if s != "" {
			m := make(map[string]string)
			err := json.Unmarshal([]byte(s), &m)
			if err == nil {
				if v, exists := m[child]; exists {
					return v, true
				}
			}
		}
	}
	if c.Fallback {
		return os.LookupEnv(child)
	}
	return "", false
}

type YAMLConfigUnmarshaler struct{}

func (u YAMLConfigUnmarshaler) Unmarshal(compev CompositeEnvVar, sources ...MappingFile) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		if s.Length > 0 {
			options = append(options, config.Source(s.Reader))
		}
	}
	options = append(options, config.Expand(compev.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	populate := func(key string, target interface{}) error {
		if !yaml.Get(key).HasValue() {
			return nil
		}
		if err := yaml.Get(key).Populate(target); err != nil {
			return readError(key, err)
		}
		return nil
	}

	for _, field := range []struct {
		key    string
		target interface{}
	}{
		{"sources", &result.Sources},
		{"entities", &result.Entities},
		{"envelope", &result.Envelope},
		{"caseTypes", &result.CaseTypes},
		{"naamgebruikCodes", &result.NaamgebruikCodes},
		{"indexOffsets", &result.IndexOffsets},
		{"handlers", &result.Handlers},
		{"store", &result.Store},
		{"cache", &result.Cache},
		{"events", &result.Events},
		{"recording", &result.Recording},
	} {
		if err = populate(field.key, field.target); err != nil {
			return result, err
		}
	}

	for i, s := range result.Sources {
		if s.Reference == "" {
			return result, readError("sources", fmt.Errorf("source %d has no reference", i))
		}
		if s.Format == "" {
			result.Sources[i].Format = XMLFormat
		}
	}
	if result.Envelope.Root == "" {
		result.Envelope.Root = DefaultEnvelopeRoot
	}
	return result, nil
}
