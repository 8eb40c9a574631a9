//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"vidsearch/config"
	"vidsearch/internal/adapter/embedding"
	"vidsearch/internal/adapter/memstore"
	"vidsearch/internal/adapter/vectorindex"
	"vidsearch/internal/domain"
	"vidsearch/internal/logging"
	"vidsearch/internal/usecase"
)

var svc *usecase.SearchUseCase

func init() {
	svc = newService()
}

// newService wires the local hashing model over an in-memory store.
func newService() *usecase.SearchUseCase {
	cfg := config.DefaultConfig()
	logger := logging.Discard()

	emb, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		panic(err)
	}
	index := vectorindex.NewBruteForceIndex(cfg.Embedding.Dimension)
	s := usecase.NewSearchUseCase(emb, index, memstore.NewMemoryStore(), nil, usecase.SearchOptions{
		DefaultK: cfg.Search.DefaultK,
		Backend:  "memory",
	}, logger)
	if err := s.Open(context.Background()); err != nil {
		panic(err)
	}
	return s
}

func main() {
	c := make(chan struct{})

	js.Global().Set("vidsearchIngest", js.FuncOf(ingest))
	js.Global().Set("vidsearchQuery", js.FuncOf(query))
	js.Global().Set("vidsearchGet", js.FuncOf(get))
	js.Global().Set("vidsearchList", js.FuncOf(list))
	js.Global().Set("vidsearchClear", js.FuncOf(reset))
	js.Global().Set("vidsearchStats", js.FuncOf(stats))

	<-c
}

// ingest takes a filename and an analysis document as a JSON string.
func ingest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: vidsearchIngest(filename, analysisJSON)")
	}

	filename := args[0].String()
	names, docs, err := usecase.DecodeDocuments([]byte(args[1].String()), filename)
	if err != nil {
		return makeError("invalid analysis: " + err.Error())
	}

	ctx := context.Background()
	ids := make([]string, 0, len(docs))
	for i, fields := range docs {
		name := names[i]
		if len(docs) == 1 {
			name = filename
		}
		id, err := svc.Ingest(ctx, name, fields)
		if err != nil {
			return makeError("ingest failed: " + err.Error())
		}
		ids = append(ids, id)
	}

	return makeResult(map[string]interface{}{
		"success":  true,
		"ids":      ids,
		"filename": filename,
	})
}

func query(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: vidsearchQuery(query, [k])")
	}

	text := args[0].String()
	k := 0
	if len(args) > 1 {
		k = args[1].Int()
	}

	results, err := svc.Query(context.Background(), text, k)
	if err != nil {
		return makeError("search failed: " + err.Error())
	}
	if results == nil {
		results = []domain.SearchResult{}
	}

	return makeResult(map[string]interface{}{
		"results": results,
		"query":   text,
	})
}

func get(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: vidsearchGet(id)")
	}
	rec, err := svc.GetByID(context.Background(), args[0].String())
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{
		"video": rec,
	})
}

func list(this js.Value, args []js.Value) interface{} {
	records, err := svc.ListAll(context.Background())
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{
		"videos": records,
	})
}

func reset(this js.Value, args []js.Value) interface{} {
	svc = newService()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func stats(this js.Value, args []js.Value) interface{} {
	s, err := svc.Stats(context.Background())
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(map[string]interface{}{
		"videos":    s.Records,
		"indexed":   s.Indexed,
		"dimension": s.Dimension,
		"model":     s.Model,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
