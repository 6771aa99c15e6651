package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/PhotoViewer/internal/domain"
)

type memoryObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	getErr    error
	deleteErr error
	deletes   int
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) UploadFile(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "memory://" + key, nil
}

func (m *memoryObjects) GetFile(_ context.Context, key string) (io.ReadCloser, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) DeleteFile(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.objects, key)
	return nil
}

func newTestSnapshotStore(objects ObjectStorage) *SnapshotStore {
	return NewSnapshotStore(objects, "catalog/snapshot.json", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testCatalog() domain.Catalog {
	id := int64(42)
	name := "bob"
	return domain.Catalog{
		{
			ID:              domain.EntryKey(&id, "http://x/42.jpg"),
			SourceID:        &id,
			Position:        0,
			AttributionName: &name,
			Width:           100,
			Height:          50,
			FullImageURL:    "http://x/42.jpg",
			RetrievedAt:     time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:           domain.EntryKey(nil, "http://x/legacy.jpg"),
			Position:     1,
			FullImageURL: "http://x/legacy.jpg",
			RetrievedAt:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestSnapshotStore_MissingObjectIsEmpty(t *testing.T) {
	store := newTestSnapshotStore(newMemoryObjects())
	ctx := context.Background()

	assert.True(t, store.IsEmpty(ctx))
	got := store.ReadAll(ctx)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSnapshotStore_ReplaceAndRead(t *testing.T) {
	objects := newMemoryObjects()
	store := newTestSnapshotStore(objects)
	ctx := context.Background()

	want := testCatalog()
	require.NoError(t, store.ReplaceAll(ctx, want))
	assert.False(t, store.IsEmpty(ctx))

	got := store.ReadAll(ctx)
	require.Len(t, got, 2)
	assert.True(t, want.SameContent(got))
	assert.True(t, want[0].RetrievedAt.Equal(got[0].RetrievedAt))
	assert.Contains(t, string(objects.objects["catalog/snapshot.json"]), `"version":1`)
}

func TestSnapshotStore_UploadFailureIsPersistenceError(t *testing.T) {
	objects := newMemoryObjects()
	store := newTestSnapshotStore(objects)
	ctx := context.Background()

	require.NoError(t, store.ReplaceAll(ctx, testCatalog()))

	objects.uploadErr = errors.New("bucket is read-only")
	err := store.ReplaceAll(ctx, testCatalog()[:1])
	assert.ErrorIs(t, err, domain.ErrPersistence)

	assert.Len(t, store.ReadAll(ctx), 2, "прежний снапшот не затронут")
}

func TestSnapshotStore_EmptyCatalogDeletesObject(t *testing.T) {
	objects := newMemoryObjects()
	store := newTestSnapshotStore(objects)
	ctx := context.Background()

	require.NoError(t, store.ReplaceAll(ctx, testCatalog()))
	require.NoError(t, store.ReplaceAll(ctx, domain.Catalog{}))

	assert.Equal(t, 1, objects.deletes)
	assert.NotContains(t, objects.objects, "catalog/snapshot.json")
	assert.True(t, store.IsEmpty(ctx))
}

func TestSnapshotStore_DeleteFailureKeepsSnapshot(t *testing.T) {
	objects := newMemoryObjects()
	store := newTestSnapshotStore(objects)
	ctx := context.Background()

	require.NoError(t, store.ReplaceAll(ctx, testCatalog()))

	objects.deleteErr = errors.New("access denied")
	err := store.ReplaceAll(ctx, domain.Catalog{})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Len(t, store.ReadAll(ctx), 2)

	objects.deleteErr = fmt.Errorf("catalog/snapshot.json: %w", ErrObjectNotFound)
	assert.NoError(t, store.ReplaceAll(ctx, domain.Catalog{}))
}

func TestSnapshotStore_CorruptOrForeignSnapshot(t *testing.T) {
	objects := newMemoryObjects()
	store := newTestSnapshotStore(objects)
	ctx := context.Background()

	objects.objects["catalog/snapshot.json"] = []byte("{not json")
	assert.Empty(t, store.ReadAll(ctx))

	objects.objects["catalog/snapshot.json"] = []byte(`{"version":99,"entries":[{"full_image_url":"http://x/1.jpg"}]}`)
	assert.Empty(t, store.ReadAll(ctx))

	objects.getErr = errors.New("connection refused")
	assert.True(t, store.IsEmpty(ctx))
}
