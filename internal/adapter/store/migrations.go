package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"vidsearch/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyFingerprint   = []byte("fingerprint")
)

// SchemaInfo stores schema version and the embedding fingerprint.
type SchemaInfo struct {
	Version     int                `json:"version"`
	Fingerprint domain.Fingerprint `json:"fingerprint"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("decode schema version: %w", err)
			}
		}
		if data := b.Get(keyFingerprint); data != nil {
			if err := json.Unmarshal(data, &info.Fingerprint); err != nil {
				return fmt.Errorf("decode fingerprint: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreIO, err)
	}
	return &info, nil
}

// Migrate performs any necessary schema migrations.
func (s *BoltStore) Migrate() error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	if info.Version > CurrentSchemaVersion {
		return fmt.Errorf("%w: database created by newer version (v%d > v%d)",
			domain.ErrStoreIO, info.Version, CurrentSchemaVersion)
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("%w: migration from v%d to v%d failed: %w", domain.ErrStoreIO, v, v+1, err)
		}
	}
	return nil
}

// runMigration runs a specific version migration. v1 introduced the
// records, ids, vectors and meta buckets, which NewBoltStore creates, so
// stepping to it only stamps the version.
func (s *BoltStore) runMigration(from, to int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(to)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	})
}

func (s *BoltStore) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return domain.Fingerprint{}, err
	}
	return info.Fingerprint, nil
}

func (s *BoltStore) SetFingerprint(ctx context.Context, fp domain.Fingerprint) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putFingerprint(tx, fp)
	})
	if err != nil {
		return fmt.Errorf("%w: set fingerprint: %w", domain.ErrStoreIO, err)
	}
	return nil
}

func putFingerprint(tx *bbolt.Tx, fp domain.Fingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keyFingerprint, data)
}
