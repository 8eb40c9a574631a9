package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"vidsearch/config"
	"vidsearch/internal/adapter/cache"
	"vidsearch/internal/adapter/embedding"
	"vidsearch/internal/adapter/jsonstore"
	"vidsearch/internal/adapter/memstore"
	"vidsearch/internal/adapter/pgstore"
	"vidsearch/internal/adapter/store"
	"vidsearch/internal/adapter/vectorindex"
	"vidsearch/internal/domain"
	"vidsearch/internal/port"
	"vidsearch/internal/usecase"
)

// app is the wired search service for one command invocation.
type app struct {
	svc   *usecase.SearchUseCase
	store port.RecordStore
}

func (a *app) Close() error {
	return a.store.Close()
}

// openStore opens the configured record store backend.
func openStore(ctx context.Context, cfg *config.Config, root string) (port.RecordStore, error) {
	switch cfg.Store.Backend {
	case "bolt":
		if err := config.EnsureDataDir(root); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return store.NewBoltStore(cfg.StorePath(root))
	case "json":
		return jsonstore.Open(cfg.StorePath(root))
	case "memory":
		return memstore.NewMemoryStore(), nil
	case "postgres":
		url := os.Getenv(cfg.Store.DatabaseURLEnv)
		if url == "" {
			return nil, fmt.Errorf("database URL not found in environment variable %s", cfg.Store.DatabaseURLEnv)
		}
		return pgstore.Open(ctx, url, cfg.Store.Table)
	}
	return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
}

// openApp wires store, embedder, index and cache. When allowReindex is set a
// domain.ErrReindexRequired from Open is tolerated so the caller can run
// Reindex itself.
func openApp(ctx context.Context, allowReindex bool) (*app, error) {
	cfg := GetConfig()

	st, err := openStore(ctx, cfg, GetRootDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	index := vectorindex.NewBruteForceIndex(cfg.Embedding.Dimension,
		vectorindex.WithParallelScan(cfg.Search.ParallelThreshold, cfg.Search.Workers))

	var queryCache *cache.QueryCache
	if cfg.Search.CacheSize > 0 {
		queryCache = cache.NewQueryCache(cfg.Search.CacheSize, cfg.Search.CacheTTL)
	}

	svc := usecase.NewSearchUseCase(emb, index, st, queryCache, usecase.SearchOptions{
		DefaultK:    cfg.Search.DefaultK,
		MinScore:    cfg.Search.MinScore,
		AutoReindex: cfg.Search.AutoReindex,
		BatchSize:   cfg.Embedding.BatchSize,
		Backend:     cfg.Store.Backend,
	}, logger)

	if err := svc.Open(ctx); err != nil {
		if !(allowReindex && errors.Is(err, domain.ErrReindexRequired)) {
			st.Close()
			if errors.Is(err, domain.ErrReindexRequired) {
				return nil, fmt.Errorf("%w (run 'vidsearch reindex' or set search.auto_reindex)", err)
			}
			return nil, err
		}
	}

	return &app{svc: svc, store: st}, nil
}
