package domain

import "errors"

var (
	// ErrModelUnavailable means the embedding model could not be loaded or
	// inference failed.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrDimensionMismatch means a vector length disagrees with the
	// configured embedding dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDuplicateID means an id is already present in the index or store.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrStoreIO means the record store failed to persist a write.
	ErrStoreIO = errors.New("record store i/o failure")

	// ErrNotFound is returned for lookups of unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks caller input that can never succeed as given,
	// such as an empty query or transcript.
	ErrInvalidInput = errors.New("invalid input")

	// ErrReindexRequired means stored embeddings were produced by a different
	// model or dimension than the one configured.
	ErrReindexRequired = errors.New("reindex required")
)
