package jsonstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsearch/internal/adapter/storetest"
	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.RecordStore {
		s, err := Open(filepath.Join(t.TempDir(), "records.json"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	storetest.RunPersistence(t, func(t *testing.T) port.RecordStore {
		s, err := Open(path)
		require.NoError(t, err)
		return s
	})
}

func TestStore_FailedWriteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, storetest.Record("a"), storetest.Vector(1, 4)))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	s.persist = func([]byte) error { return errors.New("disk full") }
	err = s.Append(ctx, storetest.Record("b"), storetest.Vector(2, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreIO)

	_, err = s.Get(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// the id is free again once writes succeed
	s.persist = s.writeAtomic
	require.NoError(t, s.Append(ctx, storetest.Record("b"), storetest.Vector(2, 4)))
}

func TestStore_FailedReplaceKeepsOldEmbeddings(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, storetest.Record("a"), storetest.Vector(1, 4)))

	s.persist = func([]byte) error { return errors.New("disk full") }
	fp := domain.Fingerprint{Provider: "local", Model: "hashing-v1", Dimension: 2}
	err = s.ReplaceEmbeddings(ctx, map[string][]float32{"a": {1, 0}}, fp)
	assert.ErrorIs(t, err, domain.ErrStoreIO)

	require.NoError(t, s.Embeddings(ctx, func(id string, embedding []float32) error {
		assert.Equal(t, storetest.Vector(1, 4), embedding)
		return nil
	}))
	got, err := s.Fingerprint(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "records.json"))
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, storetest.Record(id), storetest.Vector(1, 4)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "records.json", entries[0].Name())
}

func TestOpen_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"videos": [`), 0644))

	_, err := Open(path)
	assert.ErrorIs(t, err, domain.ErrStoreIO)
}

func TestOpen_ReadsDocumentWithoutEmbeddings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	content := `{
  "videos": [
    {"id": "1700000000000", "filename": "clip.mp4", "title": "Clip", "description": "", "tags": ["a"], "transcript": "hello", "entities": []}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Open(path)
	require.NoError(t, err)

	rec, err := s.Get(context.Background(), "1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", rec.Filename)

	var vec []float32
	calls := 0
	require.NoError(t, s.Embeddings(context.Background(), func(id string, embedding []float32) error {
		calls++
		vec = embedding
		return nil
	}))
	assert.Equal(t, 1, calls)
	assert.Nil(t, vec)
}
