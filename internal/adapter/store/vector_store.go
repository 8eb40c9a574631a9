package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"vidsearch/internal/domain"
)

var (
	bucketVectors = []byte("vectors") // seq -> stored embedding
)

type storedVector struct {
	Vector []float32 `json:"v"`
}

func encodeVector(v []float32) ([]byte, error) {
	return json.Marshal(storedVector{Vector: v})
}

// Embeddings walks the records bucket in sequence order and hands each id
// its stored embedding. Records whose embedding is missing get nil.
func (s *BoltStore) Embeddings(ctx context.Context, fn func(id string, embedding []float32) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		vectors := tx.Bucket(bucketVectors)
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var head struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(v, &head); err != nil {
				return fmt.Errorf("%w: decode record at seq %d: %w", domain.ErrStoreIO, binary.BigEndian.Uint64(k), err)
			}

			var vec []float32
			if data := vectors.Get(k); data != nil {
				var stored storedVector
				if err := json.Unmarshal(data, &stored); err != nil {
					return fmt.Errorf("%w: decode embedding %s: %w", domain.ErrStoreIO, head.ID, err)
				}
				vec = stored.Vector
			}

			if err := fn(head.ID, vec); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceEmbeddings rewrites every stored embedding and the fingerprint in
// one transaction. Every stored record must have an entry in embeddings.
func (s *BoltStore) ReplaceEmbeddings(ctx context.Context, embeddings map[string][]float32, fp domain.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketIDs)
		vectors := tx.Bucket(bucketVectors)

		if n := ids.Stats().KeyN; n != len(embeddings) {
			return fmt.Errorf("have %d records, got %d embeddings", n, len(embeddings))
		}

		for id, vec := range embeddings {
			key := ids.Get([]byte(id))
			if key == nil {
				return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
			}
			data, err := encodeVector(vec)
			if err != nil {
				return err
			}
			if err := vectors.Put(key, data); err != nil {
				return err
			}
		}
		return putFingerprint(tx, fp)
	})
	if err != nil {
		return fmt.Errorf("%w: replace embeddings: %w", domain.ErrStoreIO, err)
	}
	return nil
}
