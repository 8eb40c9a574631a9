// Package storetest holds behaviour checks shared by every port.RecordStore
// backend.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) port.RecordStore

// Record builds a small record for tests.
func Record(id string) domain.AnalysisRecord {
	return domain.NewAnalysisRecord(id, id+".mp4", domain.AnalysisFields{
		Title:       "Title " + id,
		Description: "Description " + id,
		Tags:        []string{"tag-" + id},
		Transcript:  "transcript of " + id,
		Entities:    []string{"Entity " + id},
	})
}

// Vector returns a deterministic vector of dimension dim seeded by n.
func Vector(n, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32((n+1)*(i+1)%7) / 7
	}
	return v
}

// Run exercises the port.RecordStore contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("EmptyStore", func(t *testing.T) {
		s := newStore(t)

		records, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, records)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		fp, err := s.Fingerprint(ctx)
		require.NoError(t, err)
		assert.True(t, fp.IsZero())
	})

	t.Run("AppendAndGet", func(t *testing.T) {
		s := newStore(t)
		rec := Record("a")
		require.NoError(t, s.Append(ctx, rec, Vector(1, 4)))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ListPreservesInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		// ids deliberately not in lexical order
		ids := []string{"m", "b", "z", "a", "q"}
		for i, id := range ids {
			require.NoError(t, s.Append(ctx, Record(id), Vector(i, 4)))
		}

		records, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, records, len(ids))
		for i, id := range ids {
			assert.Equal(t, id, records[i].ID)
		}

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(ids), n)
	})

	t.Run("DuplicateIDLeavesStoreUnchanged", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, Record("a"), Vector(1, 4)))

		dup := Record("a")
		dup.Title = "other"
		err := s.Append(ctx, dup, Vector(2, 4))
		assert.ErrorIs(t, err, domain.ErrDuplicateID)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Title a", got.Title)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("EmbeddingsInInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		ids := []string{"c", "a", "b"}
		for i, id := range ids {
			require.NoError(t, s.Append(ctx, Record(id), Vector(i, 4)))
		}

		var seen []string
		err := s.Embeddings(ctx, func(id string, embedding []float32) error {
			seen = append(seen, id)
			assert.Equal(t, Vector(len(seen)-1, 4), embedding, "embedding for %s", id)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, ids, seen)
	})

	t.Run("EmbeddingsStopsOnCallbackError", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Append(ctx, Record(fmt.Sprint(i)), Vector(i, 4)))
		}

		stop := fmt.Errorf("stop")
		calls := 0
		err := s.Embeddings(ctx, func(id string, embedding []float32) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("ReplaceEmbeddings", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, Record("a"), Vector(1, 4)))
		require.NoError(t, s.Append(ctx, Record("b"), Vector(2, 4)))

		fp := domain.Fingerprint{Provider: "local", Model: "hashing-v1", Dimension: 3}
		replacement := map[string][]float32{
			"a": {1, 0, 0},
			"b": {0, 1, 0},
		}
		require.NoError(t, s.ReplaceEmbeddings(ctx, replacement, fp))

		got := map[string][]float32{}
		require.NoError(t, s.Embeddings(ctx, func(id string, embedding []float32) error {
			got[id] = embedding
			return nil
		}))
		assert.Equal(t, replacement, got)

		stored, err := s.Fingerprint(ctx)
		require.NoError(t, err)
		assert.Equal(t, fp, stored)
	})

	t.Run("ReplaceEmbeddingsRejectsPartialSet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, Record("a"), Vector(1, 4)))
		require.NoError(t, s.Append(ctx, Record("b"), Vector(2, 4)))

		fp := domain.Fingerprint{Provider: "local", Model: "hashing-v1", Dimension: 4}
		err := s.ReplaceEmbeddings(ctx, map[string][]float32{"a": Vector(9, 4)}, fp)
		require.Error(t, err)

		require.NoError(t, s.Embeddings(ctx, func(id string, embedding []float32) error {
			if id == "a" {
				assert.Equal(t, Vector(1, 4), embedding)
			}
			return nil
		}))
		stored, err := s.Fingerprint(ctx)
		require.NoError(t, err)
		assert.True(t, stored.IsZero())
	})

	t.Run("SetFingerprint", func(t *testing.T) {
		s := newStore(t)
		fp := domain.Fingerprint{Provider: "openai", Model: "text-embedding-3-small", Dimension: 512}
		require.NoError(t, s.SetFingerprint(ctx, fp))

		got, err := s.Fingerprint(ctx)
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	})

	t.Run("StoredRecordsAreIsolatedFromCaller", func(t *testing.T) {
		s := newStore(t)
		rec := Record("a")
		vec := Vector(1, 4)
		require.NoError(t, s.Append(ctx, rec, vec))

		rec.Tags[0] = "mutated"
		vec[0] = 42

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "tag-a", got.Tags[0])
		require.NoError(t, s.Embeddings(ctx, func(id string, embedding []float32) error {
			assert.NotEqual(t, float32(42), embedding[0])
			return nil
		}))
	})
}

// RunPersistence checks that a reopened store sees everything written before
// it was closed. reopen must open the same underlying storage each call.
func RunPersistence(t *testing.T, reopen Factory) {
	ctx := context.Background()

	s := reopen(t)
	fp := domain.Fingerprint{Provider: "local", Model: "hashing-v1", Dimension: 4}
	require.NoError(t, s.SetFingerprint(ctx, fp))
	require.NoError(t, s.Append(ctx, Record("first"), Vector(1, 4)))
	require.NoError(t, s.Append(ctx, Record("second"), Vector(2, 4)))
	require.NoError(t, s.Close())

	s = reopen(t)
	defer s.Close()

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].ID)
	assert.Equal(t, "second", records[1].ID)

	got, err := s.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, fp, got)

	var vectors [][]float32
	require.NoError(t, s.Embeddings(ctx, func(id string, embedding []float32) error {
		vectors = append(vectors, embedding)
		return nil
	}))
	assert.Equal(t, [][]float32{Vector(1, 4), Vector(2, 4)}, vectors)
}
