package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidsearch/internal/adapter/cache"
	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

// SearchOptions tunes a SearchUseCase.
type SearchOptions struct {
	DefaultK    int
	MinScore    float64 // Filter results below this score (0 = disabled)
	AutoReindex bool    // Reindex from stored transcripts on Open instead of failing
	BatchSize   int     // Transcripts per embedding call during Reindex
	Backend     string  // Reported by Stats
}

// ProgressFunc reports done out of total units of work.
type ProgressFunc func(done, total int)

// SearchUseCase owns the vector index and the record store and keeps them
// consistent: every stored record has an index entry under the same id and
// the index holds nothing else.
//
// Writes (Ingest, Reindex, Open) are serialised by one mutex. Queries take no
// lock, so a query racing an ingest may or may not see that ingest's record.
type SearchUseCase struct {
	embedder port.Embedder
	index    port.VectorIndex
	store    port.RecordStore
	cache    *cache.QueryCache // nil disables caching
	opts     SearchOptions
	logger   *slog.Logger

	newID func() (string, error)

	ingestMu sync.Mutex
}

// NewSearchUseCase creates a new search use case. The index must be empty;
// call Open to load stored embeddings into it.
func NewSearchUseCase(
	embedder port.Embedder,
	index port.VectorIndex,
	store port.RecordStore,
	queryCache *cache.QueryCache,
	opts SearchOptions,
	logger *slog.Logger,
) *SearchUseCase {
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		embedder: embedder,
		index:    index,
		store:    store,
		cache:    queryCache,
		opts:     opts,
		logger:   logger,
		newID:    newRecordID,
	}
}

// newRecordID returns a time-ordered UUIDv7.
func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// fingerprint identifies the configured embedding space.
func (u *SearchUseCase) fingerprint() domain.Fingerprint {
	if f, ok := u.embedder.(interface{ Fingerprint() domain.Fingerprint }); ok {
		return f.Fingerprint()
	}
	return domain.Fingerprint{Model: u.embedder.ModelName(), Dimension: u.embedder.Dimension()}
}

// Open loads stored embeddings into the index. If they were produced under a
// different fingerprint, or some record has none, Open fails with
// domain.ErrReindexRequired unless AutoReindex is set.
func (u *SearchUseCase) Open(ctx context.Context) error {
	u.ingestMu.Lock()
	defer u.ingestMu.Unlock()

	want := u.fingerprint()
	stored, err := u.store.Fingerprint(ctx)
	if err != nil {
		return err
	}
	count, err := u.store.Count(ctx)
	if err != nil {
		return err
	}

	var reason string
	switch {
	case stored.IsZero() && count == 0:
		return u.store.SetFingerprint(ctx, want)
	case stored.IsZero():
		reason = "stored embeddings have no recorded model"
	case stored != want:
		reason = fmt.Sprintf("stored embeddings from %s/%s (dimension %d), configured %s/%s (dimension %d)",
			stored.Provider, stored.Model, stored.Dimension, want.Provider, want.Model, want.Dimension)
	default:
		reason, err = u.restoreLocked(ctx)
		if err != nil {
			return err
		}
	}

	if reason == "" {
		u.logger.Info("index restored", "records", u.index.Len(), "model", want.Model)
		return nil
	}

	if !u.opts.AutoReindex {
		return fmt.Errorf("%w: %s", domain.ErrReindexRequired, reason)
	}
	u.logger.Warn("reindexing on open", "reason", reason)
	return u.reindexLocked(ctx, nil)
}

// restoreLocked inserts every stored embedding into the index. It returns a
// non-empty reason instead of touching the index when some record lacks an
// embedding.
func (u *SearchUseCase) restoreLocked(ctx context.Context) (string, error) {
	type item struct {
		id  string
		vec []float32
	}
	var items []item
	var missing string

	err := u.store.Embeddings(ctx, func(id string, embedding []float32) error {
		if embedding == nil {
			missing = id
			return errStopIteration
		}
		items = append(items, item{id: id, vec: embedding})
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return "", err
	}
	if missing != "" {
		return fmt.Sprintf("record %s has no stored embedding", missing), nil
	}

	for _, it := range items {
		if err := u.index.Insert(it.id, it.vec); err != nil {
			return "", fmt.Errorf("restore %s: %w", it.id, err)
		}
	}
	return "", nil
}

var errStopIteration = errors.New("stop iteration")

// Ingest stores a new record and indexes its transcript. It is all or
// nothing: on error neither the index nor the store holds the new id.
func (u *SearchUseCase) Ingest(ctx context.Context, filename string, fields domain.AnalysisFields) (string, error) {
	if strings.TrimSpace(fields.Transcript) == "" {
		return "", fmt.Errorf("%w: transcript is empty", domain.ErrInvalidInput)
	}

	id, err := u.newID()
	if err != nil {
		return "", fmt.Errorf("assign id: %w", err)
	}
	rec := domain.NewAnalysisRecord(id, filename, fields)

	u.ingestMu.Lock()
	defer u.ingestMu.Unlock()

	start := time.Now()
	vec, err := u.embedOne(ctx, rec.Transcript)
	if err != nil {
		return "", err
	}

	if err := u.index.Insert(id, vec); err != nil {
		return "", fmt.Errorf("index %s: %w", id, err)
	}

	if err := u.store.Append(ctx, rec, vec); err != nil {
		u.index.Remove(id)
		u.logger.Warn("ingest rolled back", "id", id, "filename", filename, "error", err)
		return "", fmt.Errorf("store %s: %w", id, err)
	}

	if u.cache != nil {
		u.cache.Invalidate()
	}

	u.logger.Info("ingested", "id", id, "filename", filename, "duration_ms", time.Since(start).Milliseconds())
	return id, nil
}

// Query returns up to k records most similar to text, best first. k <= 0
// uses the configured default. Hits the store does not know are dropped.
func (u *SearchUseCase) Query(ctx context.Context, text string, k int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = u.opts.DefaultK
	}

	var gen uint64
	if u.cache != nil {
		if results, hit := u.cache.Get(text, k); hit {
			return results, nil
		}
		gen = u.cache.Generation()
	}

	vec, err := u.embedOne(ctx, text)
	if err != nil {
		return nil, err
	}

	hits, err := u.index.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if u.opts.MinScore > 0 && hit.Score < u.opts.MinScore {
			continue
		}
		rec, err := u.store.Get(ctx, hit.ID)
		if errors.Is(err, domain.ErrNotFound) {
			u.logger.Debug("dropping hit without record", "id", hit.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, domain.SearchResult{Record: rec, Score: hit.Score})
	}

	if u.cache != nil {
		u.cache.Put(text, k, gen, results)
	}
	return results, nil
}

func (u *SearchUseCase) GetByID(ctx context.Context, id string) (domain.AnalysisRecord, error) {
	return u.store.Get(ctx, id)
}

func (u *SearchUseCase) ListAll(ctx context.Context) ([]domain.AnalysisRecord, error) {
	return u.store.List(ctx)
}

// Reindex re-embeds every stored transcript with the configured model,
// replaces the stored embeddings in one step and rebuilds the index.
func (u *SearchUseCase) Reindex(ctx context.Context, progress ProgressFunc) error {
	u.ingestMu.Lock()
	defer u.ingestMu.Unlock()
	return u.reindexLocked(ctx, progress)
}

func (u *SearchUseCase) reindexLocked(ctx context.Context, progress ProgressFunc) error {
	start := time.Now()
	records, err := u.store.List(ctx)
	if err != nil {
		return err
	}

	embeddings := make(map[string][]float32, len(records))
	for i := 0; i < len(records); i += u.opts.BatchSize {
		end := min(i+u.opts.BatchSize, len(records))
		texts := make([]string, 0, end-i)
		for _, r := range records[i:end] {
			texts = append(texts, r.Transcript)
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("reindex: %w: got %d embeddings for %d texts", domain.ErrModelUnavailable, len(vectors), len(texts))
		}
		for j, r := range records[i:end] {
			embeddings[r.ID] = vectors[j]
		}
		if progress != nil {
			progress(end, len(records))
		}
	}

	if err := u.store.ReplaceEmbeddings(ctx, embeddings, u.fingerprint()); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	for _, r := range records {
		u.index.Remove(r.ID)
	}
	for _, r := range records {
		if err := u.index.Insert(r.ID, embeddings[r.ID]); err != nil {
			return fmt.Errorf("reindex: index %s: %w", r.ID, err)
		}
	}

	if u.cache != nil {
		u.cache.Invalidate()
	}
	u.logger.Info("reindex complete", "records", len(records), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Stats reports record and index sizes.
func (u *SearchUseCase) Stats(ctx context.Context) (domain.Stats, error) {
	n, err := u.store.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{
		Records:   n,
		Indexed:   u.index.Len(),
		Dimension: u.embedder.Dimension(),
		Model:     u.embedder.ModelName(),
		Backend:   u.opts.Backend,
	}, nil
}

func (u *SearchUseCase) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := u.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for 1 text", domain.ErrModelUnavailable, len(vectors))
	}
	return vectors[0], nil
}
