package port

import (
	"context"

	"vidsearch/internal/domain"
)

// RecordStore durably stores analysis records together with the embedding
// generated from each transcript.
type RecordStore interface {
	// Append persists a record and its embedding atomically. On failure the
	// durable state is left as it was before the call.
	Append(ctx context.Context, rec domain.AnalysisRecord, embedding []float32) error

	// Get returns the record with the given id or domain.ErrNotFound.
	Get(ctx context.Context, id string) (domain.AnalysisRecord, error)

	// List returns all records in insertion order.
	List(ctx context.Context) ([]domain.AnalysisRecord, error)

	// Embeddings calls fn for every stored embedding in insertion order.
	// Records without a stored embedding are passed a nil vector.
	Embeddings(ctx context.Context, fn func(id string, embedding []float32) error) error

	// ReplaceEmbeddings atomically swaps every stored embedding and records
	// the fingerprint they were produced with.
	ReplaceEmbeddings(ctx context.Context, embeddings map[string][]float32, fp domain.Fingerprint) error

	// Fingerprint returns the fingerprint recorded with stored embeddings,
	// or the zero value if none has been recorded yet.
	Fingerprint(ctx context.Context) (domain.Fingerprint, error)

	// SetFingerprint records the fingerprint for an empty or matching store.
	SetFingerprint(ctx context.Context, fp domain.Fingerprint) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	Close() error
}
