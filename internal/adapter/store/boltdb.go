package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

var (
	bucketRecords = []byte("records") // seq -> record json
	bucketIDs     = []byte("ids")     // id -> seq
	bucketMeta    = []byte("meta")
)

// BoltStore is the default record store: a single bbolt file whose
// copy-on-write transactions make each Append all-or-nothing.
type BoltStore struct {
	db *bbolt.DB
}

var _ port.RecordStore = (*BoltStore)(nil)

// NewBoltStore opens or creates the database at path and brings its schema
// up to date.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %w", domain.ErrStoreIO, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketRecords, bucketIDs, bucketVectors, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreIO, err)
	}

	s := &BoltStore{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying database for maintenance tooling.
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func (s *BoltStore) Append(ctx context.Context, rec domain.AnalysisRecord, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode record %s: %w", domain.ErrStoreIO, rec.ID, err)
	}
	vec, err := encodeVector(embedding)
	if err != nil {
		return fmt.Errorf("%w: encode embedding %s: %w", domain.ErrStoreIO, rec.ID, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketIDs)
		if ids.Get([]byte(rec.ID)) != nil {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, rec.ID)
		}

		records := tx.Bucket(bucketRecords)
		seq, err := records.NextSequence()
		if err != nil {
			return err
		}
		key := seqKey(seq)

		if err := records.Put(key, data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketVectors).Put(key, vec); err != nil {
			return err
		}
		return ids.Put([]byte(rec.ID), key)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateID) {
			return err
		}
		return fmt.Errorf("%w: append %s: %w", domain.ErrStoreIO, rec.ID, err)
	}
	return nil
}

func (s *BoltStore) Get(ctx context.Context, id string) (domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketIDs).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
		}
		data := tx.Bucket(bucketRecords).Get(key)
		if data == nil {
			return fmt.Errorf("%w: record %s indexed but missing", domain.ErrStoreIO, id)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

func (s *BoltStore) List(ctx context.Context) ([]domain.AnalysisRecord, error) {
	records := []domain.AnalysisRecord{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var rec domain.AnalysisRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: decode record at seq %d: %w", domain.ErrStoreIO, binary.BigEndian.Uint64(k), err)
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketIDs).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
