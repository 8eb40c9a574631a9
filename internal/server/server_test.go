package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsearch/config"
	"vidsearch/internal/adapter/embedding"
	"vidsearch/internal/adapter/memstore"
	"vidsearch/internal/adapter/vectorindex"
	"vidsearch/internal/domain"
	"vidsearch/internal/logging"
	"vidsearch/internal/port"
	"vidsearch/internal/usecase"
)

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()
	const dim = 256
	fp := domain.Fingerprint{Provider: "local", Model: embedding.HashingModelName, Dimension: dim}
	emb := embedding.NewLazyEmbedder(fp, func(ctx context.Context) (port.Embedder, error) {
		return embedding.NewHashingEmbedder(dim), nil
	}, logging.Discard())

	svc := usecase.NewSearchUseCase(emb, vectorindex.NewBruteForceIndex(dim), memstore.NewMemoryStore(),
		nil, usecase.SearchOptions{Backend: "memory"}, logging.Discard())
	require.NoError(t, svc.Open(context.Background()))

	return New(svc, config.DefaultConfig().Server, apiKey, logging.Discard())
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func ingest(t *testing.T, h http.Handler, filename, transcript string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/videos", map[string]any{
		"filename": filename,
		"analysisResults": map[string]any{
			"title":      filename,
			"tags":       []string{"demo"},
			"transcript": transcript,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIngestGetListSearch(t *testing.T) {
	s := newTestServer(t, "")

	catsID := ingest(t, s, "cats.mp4", "cats are great pets")
	ingest(t, s, "dogs.mp4", "dogs are loyal companions")

	rec := do(t, s, http.MethodGet, "/videos/"+catsID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.AnalysisRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "cats.mp4", got.Filename)
	assert.Equal(t, []string{"demo"}, got.Tags)

	rec = do(t, s, http.MethodGet, "/videos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Videos, 2)
	assert.Equal(t, catsID, list.Videos[0].ID)

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "feline pets", K: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	var search SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &search))
	require.Len(t, search.Results, 1)
	assert.Equal(t, catsID, search.Results[0].Record.ID)

	rec = do(t, s, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 2, stats.Indexed)
}

func TestIngest_FlatFields(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/videos", map[string]any{
		"filename":   "flat.mp4",
		"transcript": "a flat document",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSearch_EmptyIndexReturnsEmptyList(t *testing.T) {
	s := newTestServer(t, "")
	rec := do(t, s, http.MethodPost, "/search", SearchRequest{Query: "anything"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, "")

	rec := do(t, s, http.MethodGet, "/videos/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/videos", map[string]any{"filename": "x.mp4"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing transcript")

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "?! ..."})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "query without words")

	rec = do(t, s, http.MethodPost, "/search", SearchRequest{Query: "x", K: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_DimensionMismatchIsServerError(t *testing.T) {
	// The model's vectors are shorter than the index expects.
	svc := usecase.NewSearchUseCase(embedding.NewHashingEmbedder(128), vectorindex.NewBruteForceIndex(256),
		memstore.NewMemoryStore(), nil, usecase.SearchOptions{}, logging.Discard())
	require.NoError(t, svc.Open(context.Background()))
	s := New(svc, config.DefaultConfig().Server, "", logging.Discard())

	rec := do(t, s, http.MethodPost, "/search", SearchRequest{Query: "cats"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, s, http.MethodPost, "/videos", map[string]any{"filename": "x.mp4", "transcript": "cats"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("embedding 0: %w", domain.ErrDimensionMismatch), http.StatusInternalServerError},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("%w: load: boom", domain.ErrModelUnavailable), http.StatusServiceUnavailable},
		{domain.ErrReindexRequired, http.StatusConflict},
		{domain.ErrStoreIO, http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestAPIKey(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")

	rec = do(t, s, http.MethodGet, "/videos", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/videos", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/videos", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}
