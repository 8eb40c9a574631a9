package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

// Loader constructs and warms up an embedding model.
type Loader func(ctx context.Context) (port.Embedder, error)

// LazyEmbedder defers model loading to the first Embed call and keeps the
// loaded model for the rest of the process lifetime. Concurrent first calls
// share a single load. A failed load is not remembered, so a later call
// retries it.
type LazyEmbedder struct {
	fingerprint domain.Fingerprint
	load        Loader
	logger      *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	loaded port.Embedder
}

var _ port.Embedder = (*LazyEmbedder)(nil)

// NewLazyEmbedder wraps load. fp describes the model load is expected to
// produce; its dimension is enforced on every returned vector.
func NewLazyEmbedder(fp domain.Fingerprint, load Loader, logger *slog.Logger) *LazyEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LazyEmbedder{
		fingerprint: fp,
		load:        load,
		logger:      logger,
	}
}

// Embed generates one embedding per text. Load and inference failures wrap
// domain.ErrModelUnavailable.
func (e *LazyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model, err := e.model(ctx)
	if err != nil {
		return nil, err
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := model.Embed(ctx, texts)
	if errors.Is(err, domain.ErrInvalidInput) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrModelUnavailable, e.fingerprint.Model, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts",
			domain.ErrModelUnavailable, e.fingerprint.Model, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.fingerprint.Dimension {
			return nil, fmt.Errorf("embedding %d: %w: expected %d, got %d",
				i, domain.ErrDimensionMismatch, e.fingerprint.Dimension, len(v))
		}
	}
	return vectors, nil
}

// EmbedText embeds a single text.
func (e *LazyEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dimension returns the configured dimension without loading the model.
func (e *LazyEmbedder) Dimension() int {
	return e.fingerprint.Dimension
}

// ModelName returns the configured model name without loading the model.
func (e *LazyEmbedder) ModelName() string {
	return e.fingerprint.Model
}

// Fingerprint identifies the embedding space of this embedder.
func (e *LazyEmbedder) Fingerprint() domain.Fingerprint {
	return e.fingerprint
}

// Loaded reports whether the model has been loaded.
func (e *LazyEmbedder) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded != nil
}

func (e *LazyEmbedder) model(ctx context.Context) (port.Embedder, error) {
	e.mu.RLock()
	model := e.loaded
	e.mu.RUnlock()
	if model != nil {
		return model, nil
	}

	v, err, _ := e.group.Do("load", func() (any, error) {
		e.mu.RLock()
		existing := e.loaded
		e.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		start := time.Now()
		m, err := e.load(ctx)
		if err != nil {
			e.logger.Warn("embedding model load failed",
				"provider", e.fingerprint.Provider, "model", e.fingerprint.Model, "error", err)
			return nil, err
		}
		if m.Dimension() != e.fingerprint.Dimension {
			return nil, fmt.Errorf("model %s has dimension %d, configured %d",
				m.ModelName(), m.Dimension(), e.fingerprint.Dimension)
		}

		e.mu.Lock()
		e.loaded = m
		e.mu.Unlock()

		e.logger.Info("embedding model loaded",
			"provider", e.fingerprint.Provider, "model", e.fingerprint.Model,
			"dimension", e.fingerprint.Dimension, "duration_ms", time.Since(start).Milliseconds())
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load %s/%s: %w", domain.ErrModelUnavailable, e.fingerprint.Provider, e.fingerprint.Model, err)
	}
	return v.(port.Embedder), nil
}
