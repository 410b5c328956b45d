package sync

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SynchronizationRecorder maintains the record of the last delivery of an
// object to a source.
type SynchronizationRecorder struct {
	Store  ObjectStore
	Cache  ObjectCache
	Logger *zap.Logger
	Now    func() time.Time
}

func (r SynchronizationRecorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Bind finds the record for (objectID, source, entity) or creates a new,
// unsaved one, and binds the mapping reference to it.
func (r SynchronizationRecorder) Bind(ctx context.Context, objectID, source, entity, mapping string) (Synchronization, error) {
	result, err := r.Store.FindSynchronization(ctx, objectID, source, entity)
	if errors.Is(err, ErrSynchronizationNotFound) {
		now := r.now()
		result = Synchronization{
			ID:           uuid.New(),
			ObjectID:     objectID,
			Source:       source,
			Entity:       entity,
			DateCreated:  now,
			DateModified: now,
		}
	} else if err != nil {
		return result, fmt.Errorf("failed to find synchronization: %w", err)
	}
	result.Mapping = mapping
	return result, nil
}

// Record stamps a successful delivery on s, saves it and caches object.
// decoded is the decoded response body the hash is computed from.
func (r SynchronizationRecorder) Record(ctx context.Context, s *Synchronization, decoded interface{}, object Object) error {
	hash, err := HashBody(decoded)
	if err != nil {
		return err
	}
	now := r.now()
	s.LastSynced = now
	s.SourceLastChanged = now
	s.LastChecked = now
	s.DateModified = now
	s.Hash = hash

	if err = r.Store.SaveSynchronization(ctx, *s); err != nil {
		return fmt.Errorf("failed to save synchronization: %w", err)
	}
	if r.Cache != nil {
		if err = r.Cache.CacheObject(ctx, object); err != nil {
			// the delivery stands, a cold cache only costs a read
			r.logger().Warn("failed to cache object", zap.String("object", object.ID), zap.Error(err))
		}
	}
	return nil
}

func (r SynchronizationRecorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// HashBody returns the hex sha384 of the canonical JSON form of v.
// Map keys are sorted so equal trees hash equally.
func HashBody(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize response for hashing: %w", err)
	}
	sum := sha512.Sum384(data)
	return hex.EncodeToString(sum[:]), nil
}
