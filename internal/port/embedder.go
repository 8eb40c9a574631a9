package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex is an in-memory nearest-neighbour index keyed by record id.
type VectorIndex interface {
	// Insert adds a vector under a new id.
	Insert(id string, vector []float32) error

	// Remove deletes an id, reporting whether it was present.
	Remove(id string) bool

	// Search returns up to k entries most similar to the query,
	// best first.
	Search(query []float32, k int) ([]VectorHit, error)

	// Has reports whether id is indexed.
	Has(id string) bool

	// Len returns the number of indexed vectors.
	Len() int

	// Dimension returns the fixed vector dimension.
	Dimension() int
}

// VectorHit is a single index search result.
type VectorHit struct {
	ID    string  // Record ID
	Score float64 // Cosine similarity (higher is better)
}
