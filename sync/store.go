package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Object is a stored record, e.g. a zaak, belonging to an entity.
type Object struct {
	ID           string    `db:"id" json:"id"`
	Entity       string    `db:"entity" json:"entity"`
	Data         []byte    `db:"data" json:"data"`
	DateCreated  time.Time `db:"date_created" json:"dateCreated"`
	DateModified time.Time `db:"date_modified" json:"dateModified"`
}

// Synchronization links one object to one delivery target.
type Synchronization struct {
	ID                uuid.UUID `json:"id"`
	ObjectID          string    `json:"object"`
	Source            string    `json:"source"`
	Entity            string    `json:"entity"`
	Mapping           string    `json:"mapping,omitempty"`
	LastSynced        time.Time `json:"lastSynced"`
	SourceLastChanged time.Time `json:"sourceLastChanged"`
	LastChecked       time.Time `json:"lastChecked"`
	Hash              string    `json:"hash,omitempty"`
	DateCreated       time.Time `json:"dateCreated"`
	DateModified      time.Time `json:"dateModified"`
}

// ObjectStore holds objects and their synchronizations.
type ObjectStore interface {
	FindObject(ctx context.Context, id string) (Object, error)
	SaveObject(ctx context.Context, object Object) error
	FindSynchronization(ctx context.Context, objectID, source, entity string) (Synchronization, error)
	SaveSynchronization(ctx context.Context, s Synchronization) error
	// DeleteObjectsCreatedBefore removes the entity's objects created before
	// the given time, together with their synchronizations.
	DeleteObjectsCreatedBefore(ctx context.Context, entity string, before time.Time) (int, error)
}

type syncKey struct {
	objectID, source, entity string
}

// MemoryStore is an ObjectStore for tests and single shot command runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	syncs   map[syncKey]Synchronization
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]Object),
		syncs:   make(map[syncKey]Synchronization),
	}
}

func (m *MemoryStore) FindObject(ctx context.Context, id string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, exists := m.objects[id]; exists {
		return o, nil
	}
	return Object{}, ErrObjectNotFound
}

func (m *MemoryStore) SaveObject(ctx context.Context, object Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[object.ID] = object
	return nil
}

func (m *MemoryStore) FindSynchronization(ctx context.Context, objectID, source, entity string) (Synchronization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, exists := m.syncs[syncKey{objectID, source, entity}]; exists {
		return s, nil
	}
	return Synchronization{}, ErrSynchronizationNotFound
}

func (m *MemoryStore) SaveSynchronization(ctx context.Context, s Synchronization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs[syncKey{s.ObjectID, s.Source, s.Entity}] = s
	return nil
}

func (m *MemoryStore) DeleteObjectsCreatedBefore(ctx context.Context, entity string, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, o := range m.objects {
		if o.Entity != entity || !o.DateCreated.Before(before) {
			continue
		}
		delete(m.objects, id)
		for key := range m.syncs {
			if key.objectID == id {
				delete(m.syncs, key)
			}
		}
		deleted++
	}
	return deleted, nil
}

// Synchronizations returns every stored synchronization.
func (m *MemoryStore) Synchronizations() []Synchronization {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Synchronization, 0, len(m.syncs))
	for _, s := range m.syncs {
		result = append(result, s)
	}
	return result
}
