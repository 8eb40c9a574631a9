package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"vidsearch/config"
	"vidsearch/internal/adapter/embedding"
	"vidsearch/internal/adapter/jsonstore"
	"vidsearch/internal/adapter/store"
	"vidsearch/internal/adapter/vectorindex"
	"vidsearch/internal/domain"
	"vidsearch/internal/logging"
	"vidsearch/internal/port"
	"vidsearch/internal/usecase"
)

func main() {
	dataPath := flag.String("dir", ".", "Directory holding vidsearch.yaml and .vidsearch/")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./library -q \"query\"")
		fmt.Println("\nTests:")
		fmt.Println("  1. Embedding infrastructure (model load, stored vectors)")
		fmt.Println("  2. Semantic similarity (query vs stored transcripts)")
		fmt.Println("  3. Latency of a cold and a warm query")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := openStore(cfg, *dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	logger := logging.Discard()

	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}
	index := vectorindex.NewBruteForceIndex(cfg.Embedding.Dimension,
		vectorindex.WithParallelScan(cfg.Search.ParallelThreshold, cfg.Search.Workers))
	svc := usecase.NewSearchUseCase(emb, index, st, nil, usecase.SearchOptions{
		DefaultK: *topK,
		Backend:  cfg.Store.Backend,
	}, logger)

	if err := svc.Open(ctx); err != nil {
		if errors.Is(err, domain.ErrReindexRequired) {
			fmt.Fprintf(os.Stderr, "Stored embeddings do not match the configured model; run 'vidsearch reindex' first\n")
		} else {
			fmt.Fprintf(os.Stderr, "Error restoring index: %v\n", err)
		}
		os.Exit(1)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Videos stored:  %d\n", stats.Records)
	fmt.Printf("Vectors loaded: %d\n", stats.Indexed)
	fmt.Printf("Model: %s (%s)\n", stats.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", stats.Dimension)
	fmt.Printf("Backend: %s\n", stats.Backend)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	results, err := svc.Query(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	cold := time.Since(start)

	start = time.Now()
	if _, err := svc.Query(ctx, *query, *topK); err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	warm := time.Since(start)

	if len(results) == 0 {
		fmt.Println("No results. Is the store empty?")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := strings.ReplaceAll(r.Record.Transcript, "\n", " ")
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		similarity := r.Score
		totalScore += similarity

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating(similarity), similarity, label(r.Record))
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	fmt.Printf("  Cold query:         %s (includes model load)\n", cold.Round(time.Microsecond))
	fmt.Printf("  Warm query:         %s\n", warm.Round(time.Microsecond))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a better embedding model or a reindex")
	}
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	}
	return "LOW"
}

func label(rec domain.AnalysisRecord) string {
	if rec.Title != "" {
		return fmt.Sprintf("%s (%s)", rec.Title, rec.Filename)
	}
	return rec.Filename
}

// openStore opens the on-disk backends; the benchmark has nothing to probe
// in a fresh memory store and leaves postgres to the CLI.
func openStore(cfg *config.Config, root string) (port.RecordStore, error) {
	switch cfg.Store.Backend {
	case "bolt":
		return store.NewBoltStore(cfg.StorePath(root))
	case "json":
		return jsonstore.Open(cfg.StorePath(root))
	}
	return nil, fmt.Errorf("unsupported backend for benchmark: %s", cfg.Store.Backend)
}
