package sync

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SyncContext holds what every handler run shares: configuration, the
// resolved references and the collaborators a delivery touches.
// It is immutable after construction; handlers keep no state between runs.
type SyncContext struct {
	Config   Config
	Registry Registry
	Store    ObjectStore
	Cache    ObjectCache
	Pusher   OutboundPusher
	Events   DeliveryPublisher
	Metrics  *Metrics
	Logger   *zap.Logger
	Now      func() time.Time
}

// ContextOption is a functional option for NewSyncContext.
type ContextOption func(*SyncContext)

func WithStore(store ObjectStore) ContextOption {
	return func(s *SyncContext) {
		if store != nil {
			s.Store = store
		}
	}
}

func WithCache(cache ObjectCache) ContextOption {
	return func(s *SyncContext) {
		if cache != nil {
			s.Cache = cache
		}
	}
}

func WithEvents(events DeliveryPublisher) ContextOption {
	return func(s *SyncContext) {
		if events != nil {
			s.Events = events
		}
	}
}

func WithMetrics(m *Metrics) ContextOption {
	return func(s *SyncContext) {
		s.Metrics = m
	}
}

func WithLogger(logger *zap.Logger) ContextOption {
	return func(s *SyncContext) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// WithClock replaces time.Now for timestamps and tokens.
func WithClock(now func() time.Time) ContextOption {
	return func(s *SyncContext) {
		if now != nil {
			s.Now = now
		}
	}
}

// WithTransport routes outbound pushes through rt.
func WithTransport(rt http.RoundTripper) ContextOption {
	return func(s *SyncContext) {
		s.Pusher.Transport = rt
	}
}

// NewSyncContext resolves mappings against cfg. Without options runs use an
// in-memory store and publish nothing.
func NewSyncContext(cfg Config, mappings []MappingDefinition, opts ...ContextOption) (*SyncContext, error) {
	registry, err := NewRegistry(cfg, mappings)
	if err != nil {
		return nil, err
	}
	result := &SyncContext{
		Config:   cfg,
		Registry: registry,
		Store:    NewMemoryStore(),
		Cache:    NopCache{},
		Events:   NopPublisher{},
		Logger:   zap.NewNop(),
		Now:      time.Now,
		Pusher: OutboundPusher{
			Envelope:       cfg.Envelope,
			RecordRequests: cfg.Recording.Requests,
			RecordDir:      cfg.Recording.Dir,
		},
	}
	for _, opt := range opts {
		opt(result)
	}
	result.Pusher.Now = result.Now
	result.Pusher.Logger = result.Logger
	return result, nil
}

func (s *SyncContext) Recorder() SynchronizationRecorder {
	return SynchronizationRecorder{Store: s.Store, Cache: s.Cache, Logger: s.Logger, Now: s.Now}
}
