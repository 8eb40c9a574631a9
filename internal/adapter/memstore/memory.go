package memstore

import (
	"context"
	"fmt"
	"sync"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

// MemoryStore is a process-local record store for tests and the wasm build.
type MemoryStore struct {
	mu          sync.RWMutex
	records     []domain.AnalysisRecord
	embeddings  [][]float32
	positions   map[string]int
	fingerprint domain.Fingerprint
}

var _ port.RecordStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]int),
	}
}

func (s *MemoryStore) Append(ctx context.Context, rec domain.AnalysisRecord, embedding []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[rec.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, rec.ID)
	}
	s.positions[rec.ID] = len(s.records)
	s.records = append(s.records, clone(rec))
	s.embeddings = append(s.embeddings, append([]float32(nil), embedding...))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.positions[id]
	if !ok {
		return domain.AnalysisRecord{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	return clone(s.records[i]), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]domain.AnalysisRecord, len(s.records))
	for i, r := range s.records {
		records[i] = clone(r)
	}
	return records, nil
}

func (s *MemoryStore) Embeddings(ctx context.Context, fn func(id string, embedding []float32) error) error {
	s.mu.RLock()
	ids := make([]string, len(s.records))
	vectors := make([][]float32, len(s.records))
	for i, r := range s.records {
		ids[i] = r.ID
		if s.embeddings[i] != nil {
			vectors[i] = append([]float32(nil), s.embeddings[i]...)
		}
	}
	s.mu.RUnlock()

	for i, id := range ids {
		if err := fn(id, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) ReplaceEmbeddings(ctx context.Context, embeddings map[string][]float32, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(embeddings) != len(s.records) {
		return fmt.Errorf("%w: replace embeddings: have %d records, got %d embeddings",
			domain.ErrStoreIO, len(s.records), len(embeddings))
	}
	next := make([][]float32, len(s.records))
	for i, r := range s.records {
		vec, ok := embeddings[r.ID]
		if !ok {
			return fmt.Errorf("%w: replace embeddings: no embedding for %s", domain.ErrStoreIO, r.ID)
		}
		next[i] = append([]float32(nil), vec...)
	}
	s.embeddings = next
	s.fingerprint = fp
	return nil
}

func (s *MemoryStore) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint, nil
}

func (s *MemoryStore) SetFingerprint(ctx context.Context, fp domain.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = fp
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func clone(r domain.AnalysisRecord) domain.AnalysisRecord {
	return domain.NewAnalysisRecord(r.ID, r.Filename, r.Fields())
}
