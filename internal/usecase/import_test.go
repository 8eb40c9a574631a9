package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsearch/internal/adapter/fs"
	"vidsearch/internal/domain"
)

type recordingIngester struct {
	calls []string
	fail  map[string]error
}

func (r *recordingIngester) Ingest(ctx context.Context, filename string, fields domain.AnalysisFields) (string, error) {
	if err := r.fail[filename]; err != nil {
		return "", err
	}
	r.calls = append(r.calls, filename)
	return "id-" + filename, nil
}

func TestDecodeDocuments_Shapes(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		wantNames []string
	}{
		{
			name:      "nested",
			input:     `{"filename": "clip.mp4", "analysisResults": {"title": "T", "transcript": "hello", "tags": ["x"]}}`,
			wantNames: []string{"clip.mp4"},
		},
		{
			name:      "flat",
			input:     `{"filename": "flat.mp4", "title": "T", "transcript": "hello"}`,
			wantNames: []string{"flat.mp4"},
		},
		{
			name:      "flat without filename",
			input:     `{"title": "T", "transcript": "hello"}`,
			wantNames: []string{"fallback"},
		},
		{
			name: "export",
			input: `{"videos": [
				{"id": "1", "filename": "a.mp4", "analysisResults": {"transcript": "first"}},
				{"id": "2", "filename": "b.mp4", "analysisResults": {"transcript": ""}},
				{"id": "3", "filename": "c.mp4", "analysisResults": {"transcript": "third"}}
			]}`,
			wantNames: []string{"a.mp4", "b.mp4", "c.mp4"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			names, fields, err := DecodeDocuments([]byte(tc.input), "fallback")
			require.NoError(t, err)
			assert.Equal(t, tc.wantNames, names)
			assert.Len(t, fields, len(tc.wantNames))
		})
	}
}

func TestDecodeDocuments_NestedFields(t *testing.T) {
	input := `{"filename": "clip.mp4", "analysisResults": {
		"title": "Cooking", "description": "D", "tags": ["food", "pasta"],
		"transcript": "boil the water", "entities": ["Rome"]}}`

	_, fields, err := DecodeDocuments([]byte(input), "")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, domain.AnalysisFields{
		Title:       "Cooking",
		Description: "D",
		Tags:        []string{"food", "pasta"},
		Transcript:  "boil the water",
		Entities:    []string{"Rome"},
	}, fields[0])
}

func TestDecodeDocuments_Invalid(t *testing.T) {
	_, _, err := DecodeDocuments([]byte(`not json`), "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = DecodeDocuments([]byte(`{"title": "no transcript"}`), "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestImport_CollectsPerFileErrors(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "a.json", `{"filename": "a.mp4", "analysisResults": {"transcript": "alpha"}}`)
	writeDoc(t, root, "b.json", `{broken`)
	writeDoc(t, root, "sub/c.json", `{"filename": "c.mp4", "transcript": "gamma"}`)
	writeDoc(t, root, "d.json", `{"filename": "d.mp4", "transcript": "delta"}`)
	writeDoc(t, root, "notes.txt", `ignored`)

	ingester := &recordingIngester{fail: map[string]error{"d.mp4": errors.New("model down")}}
	uc := NewImportUseCase(fs.NewWalker(nil, nil), fs.OSReader{}, ingester, nil)

	var lastDone, lastTotal int
	result, err := uc.Import(context.Background(), root, func(done, total int) {
		lastDone, lastTotal = done, total
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.FilesFound)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, []string{"id-a.mp4", "id-c.mp4"}, result.IDs)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "b.json", result.Errors[0].Path)
	assert.Equal(t, "d.json", result.Errors[1].Path)
	assert.Equal(t, 4, lastDone)
	assert.Equal(t, 4, lastTotal)
}

func TestImport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeDoc(t, root, "cats.json", `{"filename": "cats.mp4", "analysisResults": {"title": "Cats", "transcript": "cats are great pets"}}`)
	writeDoc(t, root, "dogs.json", `{"filename": "dogs.mp4", "analysisResults": {"title": "Dogs", "transcript": "dogs are loyal companions"}}`)

	h := newHarness(t, nil, SearchOptions{})
	uc := NewImportUseCase(fs.NewWalker(nil, nil), fs.OSReader{}, h.svc, nil)

	result, err := uc.Import(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Errors)

	results, err := h.svc.Query(ctx, "feline pets", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cats.mp4", results[0].Record.Filename)
}

func TestImport_ReportsExportEntriesWithoutTranscript(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeDoc(t, root, "export.json", `{"videos": [
		{"filename": "a.mp4", "analysisResults": {"transcript": "cats are great pets"}},
		{"filename": "b.mp4", "analysisResults": {"title": "silent clip", "transcript": ""}},
		{"filename": "c.mp4", "analysisResults": {"transcript": "dogs are loyal companions"}}
	]}`)

	h := newHarness(t, nil, SearchOptions{})
	uc := NewImportUseCase(fs.NewWalker(nil, nil), fs.OSReader{}, h.svc, nil)

	result, err := uc.Import(ctx, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesFound)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "export.json", result.Errors[0].Path)
	assert.ErrorIs(t, result.Errors[0].Err, domain.ErrInvalidInput)
	assert.Contains(t, result.Errors[0].Error(), "b.mp4")

	records, err := h.svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.mp4", records[0].Filename)
	assert.Equal(t, "c.mp4", records[1].Filename)
}

func TestImport_MissingRoot(t *testing.T) {
	uc := NewImportUseCase(fs.NewWalker(nil, nil), fs.OSReader{}, &recordingIngester{}, nil)
	_, err := uc.Import(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}
