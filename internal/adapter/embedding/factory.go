package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"vidsearch/config"
	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

// New builds a lazily loaded embedder for the configured provider. Nothing is
// contacted or computed until the first Embed call.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) (*LazyEmbedder, error) {
	fp := domain.Fingerprint{
		Provider:  cfg.Provider,
		Model:     cfg.Model,
		Dimension: cfg.Dimension,
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	var load Loader
	switch cfg.Provider {
	case "local":
		if cfg.Model != HashingModelName {
			return nil, fmt.Errorf("unknown local model %q (available: %s)", cfg.Model, HashingModelName)
		}
		load = func(ctx context.Context) (port.Embedder, error) {
			return NewHashingEmbedder(cfg.Dimension), nil
		}

	case "mock":
		fp.Model = "mock"
		load = func(ctx context.Context) (port.Embedder, error) {
			return NewMockEmbedder(cfg.Dimension), nil
		}

	case "openai":
		load = func(ctx context.Context) (port.Embedder, error) {
			e, err := NewOpenAIEmbedder(OpenAIOptions{
				APIKeyEnv: cfg.APIKeyEnv,
				BaseURL:   cfg.BaseURL,
				Model:     cfg.Model,
				Dimension: cfg.Dimension,
				BatchSize: cfg.BatchSize,
				Timeout:   cfg.Timeout,
			})
			if err != nil {
				return nil, err
			}
			return probe(ctx, e)
		}

	case "ollama":
		load = func(ctx context.Context) (port.Embedder, error) {
			e, err := NewOllamaEmbedder(cfg.Model, cfg.BaseURL, cfg.Dimension, cfg.BatchSize, cfg.Timeout)
			if err != nil {
				return nil, err
			}
			return probe(ctx, e)
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	return NewLazyEmbedder(fp, load, logger), nil
}

// probe runs one embedding so that an unreachable server or a model with the
// wrong output size fails the load instead of the first ingest.
func probe(ctx context.Context, e port.Embedder) (port.Embedder, error) {
	vectors, err := e.Embed(ctx, []string{"probe"})
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", e.ModelName(), err)
	}
	if len(vectors) != 1 || len(vectors[0]) != e.Dimension() {
		got := 0
		if len(vectors) == 1 {
			got = len(vectors[0])
		}
		return nil, fmt.Errorf("probe %s: %w: expected %d, got %d",
			e.ModelName(), domain.ErrDimensionMismatch, e.Dimension(), got)
	}
	return e, nil
}
