// Package vectorindex provides the in-memory nearest-neighbour index over
// transcript embeddings.
package vectorindex

import (
	"container/heap"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

const (
	defaultParallelThreshold = 4096
	defaultWorkers           = 4
)

// BruteForceIndex implements exact nearest neighbour search using a linear
// scan and cosine similarity. Insertion is O(D); search is O(n·D).
// A graph based ANN index can replace it behind port.VectorIndex.
type BruteForceIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
	positions map[string]int
	nextSeq   uint64

	parallelThreshold int
	workers           int
}

var _ port.VectorIndex = (*BruteForceIndex)(nil)

type entry struct {
	id     string
	seq    uint64 // insertion order, breaks score ties
	vector []float32
	norm   float64
}

// Option configures a BruteForceIndex.
type Option func(*BruteForceIndex)

// WithParallelScan splits scans over indexes larger than threshold across
// the given number of workers. workers <= 1 disables it.
func WithParallelScan(threshold, workers int) Option {
	return func(idx *BruteForceIndex) {
		idx.parallelThreshold = threshold
		idx.workers = workers
	}
}

// NewBruteForceIndex creates an empty index for vectors of the given dimension.
func NewBruteForceIndex(dimension int, opts ...Option) *BruteForceIndex {
	idx := &BruteForceIndex{
		dimension:         dimension,
		positions:         make(map[string]int),
		parallelThreshold: defaultParallelThreshold,
		workers:           defaultWorkers,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Insert adds a vector under id. The index is left untouched on error.
func (idx *BruteForceIndex) Insert(id string, vector []float32) error {
	if len(vector) != idx.dimension {
		return fmt.Errorf("insert %s: %w: expected %d, got %d", id, domain.ErrDimensionMismatch, idx.dimension, len(vector))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.positions[id]; exists {
		return fmt.Errorf("insert %s: %w", id, domain.ErrDuplicateID)
	}

	v := make([]float32, len(vector))
	copy(v, vector)

	idx.positions[id] = len(idx.entries)
	idx.entries = append(idx.entries, entry{
		id:     id,
		seq:    idx.nextSeq,
		vector: v,
		norm:   norm(v),
	})
	idx.nextSeq++
	return nil
}

// Remove deletes id from the index. Ordering among the remaining entries is
// kept through their sequence numbers, so the slot is filled by the last entry.
func (idx *BruteForceIndex) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	pos, ok := idx.positions[id]
	if !ok {
		return false
	}

	last := len(idx.entries) - 1
	if pos != last {
		idx.entries[pos] = idx.entries[last]
		idx.positions[idx.entries[pos].id] = pos
	}
	idx.entries[last] = entry{}
	idx.entries = idx.entries[:last]
	delete(idx.positions, id)
	return true
}

// Search finds the top-k most similar vectors. Equal scores are ordered by
// insertion, earliest first. An empty index yields an empty result.
func (idx *BruteForceIndex) Search(query []float32, k int) ([]port.VectorHit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("search: %w: expected %d, got %d", domain.ErrDimensionMismatch, idx.dimension, len(query))
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.entries) == 0 {
		return []port.VectorHit{}, nil
	}

	queryNorm := norm(query)

	var top []scored
	if idx.workers > 1 && len(idx.entries) > idx.parallelThreshold {
		top = idx.scanParallel(query, queryNorm, k)
	} else {
		top = scanChunk(query, queryNorm, idx.entries, k)
	}

	hits := make([]port.VectorHit, len(top))
	for i, s := range top {
		hits[i] = port.VectorHit{ID: s.id, Score: s.score}
	}
	return hits, nil
}

// scanParallel splits the entries into contiguous partitions, takes the
// top-k of each and merges them.
func (idx *BruteForceIndex) scanParallel(query []float32, queryNorm float64, k int) []scored {
	n := len(idx.entries)
	chunkSize := (n + idx.workers - 1) / idx.workers
	partials := make([][]scored, idx.workers)

	var g errgroup.Group
	for w := 0; w < idx.workers; w++ {
		start := w * chunkSize
		if start >= n {
			break
		}
		end := min(start+chunkSize, n)
		w := w
		g.Go(func() error {
			partials[w] = scanChunk(query, queryNorm, idx.entries[start:end], k)
			return nil
		})
	}
	_ = g.Wait()

	h := &topK{}
	for _, part := range partials {
		for _, s := range part {
			h.offer(s, k)
		}
	}
	return h.sorted()
}

func scanChunk(query []float32, queryNorm float64, entries []entry, k int) []scored {
	h := &topK{}
	for i := range entries {
		e := &entries[i]
		h.offer(scored{
			id:    e.id,
			seq:   e.seq,
			score: cosineWithNorms(query, queryNorm, e.vector, e.norm),
		}, k)
	}
	return h.sorted()
}

// Has reports whether id is indexed.
func (idx *BruteForceIndex) Has(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.positions[id]
	return ok
}

// Len returns the number of vectors in the index.
func (idx *BruteForceIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimension returns the dimensionality of vectors in the index.
func (idx *BruteForceIndex) Dimension() int {
	return idx.dimension
}

type scored struct {
	id    string
	seq   uint64
	score float64
}

// better orders by descending score, then ascending insertion sequence.
func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.seq < b.seq
}

// topK is a min-heap whose root is the worst retained candidate.
type topK []scored

func (h topK) Len() int           { return len(h) }
func (h topK) Less(i, j int) bool { return better(h[j], h[i]) }
func (h topK) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *topK) Push(x any) {
	*h = append(*h, x.(scored))
}

func (h *topK) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *topK) offer(s scored, k int) {
	if h.Len() < k {
		heap.Push(h, s)
		return
	}
	if better(s, (*h)[0]) {
		(*h)[0] = s
		heap.Fix(h, 0)
	}
}

// sorted drains the heap, best first.
func (h *topK) sorted() []scored {
	out := make([]scored, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(scored)
	}
	return out
}
