// Package jsonstore keeps every record in one JSON document that is
// rewritten whole on each write.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

const formatVersion = 1

// document is the on-disk layout.
type document struct {
	Version     int                `json:"version"`
	Fingerprint domain.Fingerprint `json:"fingerprint"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Videos      []entry            `json:"videos"`
}

type entry struct {
	domain.AnalysisRecord
	Embedding []float32 `json:"embedding,omitempty"`
}

// Store is a port.RecordStore backed by a single JSON file. A write builds
// the next document in memory, persists it with write-temp, fsync, rename
// and only then makes it visible, so a failed write leaves both the file and
// the in-memory view unchanged.
type Store struct {
	path string

	mu          sync.RWMutex
	entries     []entry
	positions   map[string]int
	fingerprint domain.Fingerprint

	persist func(data []byte) error
}

var _ port.RecordStore = (*Store)(nil)

// Open loads the document at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:      path,
		positions: make(map[string]int),
	}
	s.persist = s.writeAtomic

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrStoreIO, path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrStoreIO, path, err)
	}
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("%w: %s written by newer version (v%d > v%d)", domain.ErrStoreIO, path, doc.Version, formatVersion)
	}

	for i, e := range doc.Videos {
		if _, dup := s.positions[e.ID]; dup {
			return nil, fmt.Errorf("%w: %s: %w: %s", domain.ErrStoreIO, path, domain.ErrDuplicateID, e.ID)
		}
		s.positions[e.ID] = i
	}
	s.entries = doc.Videos
	s.fingerprint = doc.Fingerprint
	return s, nil
}

func (s *Store) Append(ctx context.Context, rec domain.AnalysisRecord, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[rec.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, rec.ID)
	}

	e := entry{
		AnalysisRecord: cloneRecord(rec),
		Embedding:      append([]float32(nil), embedding...),
	}
	next := make([]entry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	next = append(next, e)

	if err := s.commit(next, s.fingerprint); err != nil {
		return fmt.Errorf("%w: append %s: %w", domain.ErrStoreIO, rec.ID, err)
	}
	s.positions[rec.ID] = len(next) - 1
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.positions[id]
	if !ok {
		return domain.AnalysisRecord{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return cloneRecord(s.entries[i].AnalysisRecord), nil
}

func (s *Store) List(ctx context.Context) ([]domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.AnalysisRecord, len(s.entries))
	for i, e := range s.entries {
		records[i] = cloneRecord(e.AnalysisRecord)
	}
	return records, nil
}

func (s *Store) Embeddings(ctx context.Context, fn func(id string, embedding []float32) error) error {
	s.mu.RLock()
	entries := s.entries
	s.mu.RUnlock()

	// entries is never mutated in place; writers swap in a new slice.
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		var vec []float32
		if e.Embedding != nil {
			vec = append([]float32(nil), e.Embedding...)
		}
		if err := fn(e.ID, vec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ReplaceEmbeddings(ctx context.Context, embeddings map[string][]float32, fp domain.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(embeddings) != len(s.entries) {
		return fmt.Errorf("%w: replace embeddings: have %d records, got %d embeddings",
			domain.ErrStoreIO, len(s.entries), len(embeddings))
	}

	next := make([]entry, len(s.entries))
	for i, e := range s.entries {
		vec, ok := embeddings[e.ID]
		if !ok {
			return fmt.Errorf("%w: replace embeddings: no embedding for %s", domain.ErrStoreIO, e.ID)
		}
		next[i] = entry{
			AnalysisRecord: e.AnalysisRecord,
			Embedding:      append([]float32(nil), vec...),
		}
	}

	if err := s.commit(next, fp); err != nil {
		return fmt.Errorf("%w: replace embeddings: %w", domain.ErrStoreIO, err)
	}
	return nil
}

func (s *Store) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint, nil
}

func (s *Store) SetFingerprint(ctx context.Context, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commit(s.entries, fp); err != nil {
		return fmt.Errorf("%w: set fingerprint: %w", domain.ErrStoreIO, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Store) Close() error {
	return nil
}

// commit persists the next state and, on success, makes it current.
// Callers hold s.mu.
func (s *Store) commit(entries []entry, fp domain.Fingerprint) error {
	doc := document{
		Version:     formatVersion,
		Fingerprint: fp,
		UpdatedAt:   time.Now().UTC(),
		Videos:      entries,
	}
	if doc.Videos == nil {
		doc.Videos = []entry{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := s.persist(data); err != nil {
		return err
	}

	s.entries = entries
	s.fingerprint = fp
	return nil
}

// writeAtomic replaces the file so that readers and crashes observe either
// the old or the new document, never a partial one.
func (s *Store) writeAtomic(data []byte) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("sync data dir: %w", err)
	}
	return nil
}

func cloneRecord(r domain.AnalysisRecord) domain.AnalysisRecord {
	return domain.NewAnalysisRecord(r.ID, r.Filename, r.Fields())
}
