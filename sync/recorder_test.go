package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCache struct {
	cached []string
	err    error
}

func (c *fakeCache) CacheObject(ctx context.Context, object Object) error {
	if c.err != nil {
		return c.err
	}
	c.cached = append(c.cached, object.ID)
	return nil
}

func TestHashBody_IgnoresKeyOrder(t *testing.T) {
	a, err := HashBody(map[string]interface{}{"b": "2", "a": map[string]interface{}{"y": 1, "x": []interface{}{"z"}}})
	require.NoError(t, err)
	b, err := HashBody(map[string]interface{}{"a": map[string]interface{}{"x": []interface{}{"z"}, "y": 1}, "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 96)

	c, err := HashBody(map[string]interface{}{"b": "3"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestSynchronizationRecorder_BindCreatesUnsavedRecord(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	recorder := SynchronizationRecorder{Store: store, Now: func() time.Time { return now }}

	s, err := recorder.Bind(context.Background(), "a1b2c3", "src", testEntity, "map")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3", s.ObjectID)
	assert.Equal(t, "map", s.Mapping)
	assert.Equal(t, now, s.DateCreated)
	assert.Empty(t, store.Synchronizations())
}

func TestSynchronizationRecorder_Record(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cache := &fakeCache{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	recorder := SynchronizationRecorder{Store: store, Cache: cache, Now: func() time.Time { return now }}

	s, err := recorder.Bind(ctx, "a1b2c3", "src", testEntity, "map")
	require.NoError(t, err)
	decoded := map[string]interface{}{"status": "ok"}
	require.NoError(t, recorder.Record(ctx, &s, decoded, Object{ID: "a1b2c3"}))

	expectedHash, _ := HashBody(decoded)
	assert.Equal(t, expectedHash, s.Hash)
	assert.Equal(t, now, s.LastSynced)
	assert.Equal(t, s.LastSynced, s.SourceLastChanged)
	assert.Equal(t, s.LastSynced, s.LastChecked)
	assert.Equal(t, []string{"a1b2c3"}, cache.cached)

	saved, err := store.FindSynchronization(ctx, "a1b2c3", "src", testEntity)
	require.NoError(t, err)
	assert.Equal(t, s.ID, saved.ID)

	// a second delivery reuses the record
	later := now.Add(time.Minute)
	recorder.Now = func() time.Time { return later }
	again, err := recorder.Bind(ctx, "a1b2c3", "src", testEntity, "map")
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)
	require.NoError(t, recorder.Record(ctx, &again, map[string]interface{}{"status": "changed"}, Object{ID: "a1b2c3"}))
	assert.Equal(t, later, again.LastSynced)
	assert.Equal(t, now, again.DateCreated)
	assert.NotEqual(t, s.Hash, again.Hash)
	assert.Len(t, store.Synchronizations(), 1)
}

func TestSynchronizationRecorder_CacheFailureOnlyWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	recorder := SynchronizationRecorder{
		Store:  NewMemoryStore(),
		Cache:  &fakeCache{err: errors.New("connection refused")},
		Logger: zap.New(core),
	}
	s, err := recorder.Bind(context.Background(), "a1b2c3", "src", testEntity, "map")
	require.NoError(t, err)
	require.NoError(t, recorder.Record(context.Background(), &s, map[string]interface{}{}, Object{ID: "a1b2c3"}))
	assert.Equal(t, 1, logs.FilterMessage("failed to cache object").Len())
}
