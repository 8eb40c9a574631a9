package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

// Ingester is the write side of SearchUseCase.
type Ingester interface {
	Ingest(ctx context.Context, filename string, fields domain.AnalysisFields) (string, error)
}

// ImportUseCase bulk-ingests analysis documents found on disk.
type ImportUseCase struct {
	walker   port.FileWalker
	reader   port.FileReader
	ingester Ingester
	logger   *slog.Logger
}

// NewImportUseCase creates a new import use case.
func NewImportUseCase(walker port.FileWalker, reader port.FileReader, ingester Ingester, logger *slog.Logger) *ImportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportUseCase{
		walker:   walker,
		reader:   reader,
		ingester: ingester,
		logger:   logger,
	}
}

// ImportError records why one document was not imported.
type ImportError struct {
	Path string
	Err  error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ImportResult contains the results of an import operation.
type ImportResult struct {
	FilesFound int
	Imported   int
	IDs        []string
	Errors     []ImportError
}

// analysisDocument accepts the nested {"filename", "analysisResults": {...}}
// shape, the flat field shape, and a {"videos": [...]} export holding many.
type analysisDocument struct {
	Filename        string                 `json:"filename"`
	AnalysisResults *domain.AnalysisFields `json:"analysisResults"`
	domain.AnalysisFields
	Videos []analysisDocument `json:"videos"`
}

func (d analysisDocument) fields() domain.AnalysisFields {
	if d.AnalysisResults != nil {
		return *d.AnalysisResults
	}
	return d.AnalysisFields
}

// DecodeDocuments parses one analysis file into (filename, fields) pairs.
// fallbackName is used when a document carries no filename. Every entry of
// an export is returned, including ones Ingest will reject, so callers can
// report them; only a file with no transcript at all is an error here.
func DecodeDocuments(data []byte, fallbackName string) ([]string, []domain.AnalysisFields, error) {
	var doc analysisDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: decode: %w", domain.ErrInvalidInput, err)
	}

	docs := doc.Videos
	if len(docs) == 0 {
		docs = []analysisDocument{doc}
	}

	names := make([]string, 0, len(docs))
	fields := make([]domain.AnalysisFields, 0, len(docs))
	hasTranscript := false
	for _, d := range docs {
		f := d.fields()
		if strings.TrimSpace(f.Transcript) != "" {
			hasTranscript = true
		}
		name := d.Filename
		if name == "" {
			name = fallbackName
		}
		names = append(names, name)
		fields = append(fields, f)
	}
	if !hasTranscript {
		return nil, nil, fmt.Errorf("%w: no analysis with a transcript", domain.ErrInvalidInput)
	}
	return names, fields, nil
}

// Import ingests every matching document under root. Per-file failures are
// collected in the result; only a failure to walk root is returned as an
// error. Import stops early if ctx is cancelled.
func (u *ImportUseCase) Import(ctx context.Context, root string, progress ProgressFunc) (*ImportResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &ImportResult{FilesFound: len(files)}
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ids, errs := u.importFile(ctx, file)
		result.IDs = append(result.IDs, ids...)
		result.Imported += len(ids)
		for _, err := range errs {
			u.logger.Warn("import failed", "path", file.RelPath, "error", err)
			result.Errors = append(result.Errors, ImportError{Path: file.RelPath, Err: err})
		}

		if progress != nil {
			progress(i+1, len(files))
		}
	}

	u.logger.Info("import complete",
		"root", root, "files", result.FilesFound, "imported", result.Imported, "errors", len(result.Errors))
	return result, nil
}

// importFile ingests every analysis in one file. A failed entry does not
// stop the rest; each failure is returned.
func (u *ImportUseCase) importFile(ctx context.Context, file port.FileInfo) ([]string, []error) {
	data, err := u.reader.ReadFile(file.Path)
	if err != nil {
		return nil, []error{fmt.Errorf("read: %w", err)}
	}

	fallback := strings.TrimSuffix(filepath.Base(file.Path), filepath.Ext(file.Path))
	names, fields, err := DecodeDocuments(data, fallback)
	if err != nil {
		return nil, []error{err}
	}

	var ids []string
	var errs []error
	for i := range fields {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		id, err := u.ingester.Ingest(ctx, names[i], fields[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("ingest %s (entry %d): %w", names[i], i, err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, errs
}
