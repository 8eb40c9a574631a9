// Package pgstore is a port.RecordStore on PostgreSQL with the pgvector
// extension. Insertion order comes from a BIGSERIAL column.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"vidsearch/internal/domain"
	"vidsearch/internal/port"
)

const uniqueViolation = "23505"

// Store keeps records in one table and the embedding fingerprint in a
// companion key/value table.
type Store struct {
	db    *sql.DB
	table string // quoted
	meta  string // quoted
}

var _ port.RecordStore = (*Store)(nil)

// Open connects to url and creates the schema if needed.
func Open(ctx context.Context, url, table string) (*Store, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if table == "" {
		table = "video_records"
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", domain.ErrStoreIO, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %w", domain.ErrStoreIO, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := New(db, table)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. Call EnsureSchema before use.
func New(db *sql.DB, table string) *Store {
	return &Store{
		db:    db,
		table: pq.QuoteIdentifier(table),
		meta:  pq.QuoteIdentifier(table + "_meta"),
	}
}

// EnsureSchema creates the extension and tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq         BIGSERIAL PRIMARY KEY,
			id          TEXT NOT NULL UNIQUE,
			filename    TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tags        TEXT[] NOT NULL DEFAULT '{}',
			transcript  TEXT NOT NULL DEFAULT '',
			entities    TEXT[] NOT NULL DEFAULT '{}',
			embedding   vector,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, s.meta),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %w", domain.ErrStoreIO, err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, rec domain.AnalysisRecord, embedding []float32) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, filename, title, description, tags, transcript, entities, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Filename,
		rec.Title,
		rec.Description,
		pq.Array(rec.Tags),
		rec.Transcript,
		pq.Array(rec.Entities),
		pgvector.NewVector(embedding),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, rec.ID)
		}
		return fmt.Errorf("%w: append %s: %w", domain.ErrStoreIO, rec.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.AnalysisRecord, error) {
	var (
		id, filename, title, description, transcript string
		tags, entities                               []string
	)
	if err := row.Scan(&id, &filename, &title, &description, pq.Array(&tags), &transcript, pq.Array(&entities)); err != nil {
		return domain.AnalysisRecord{}, err
	}
	return domain.NewAnalysisRecord(id, filename, domain.AnalysisFields{
		Title:       title,
		Description: description,
		Tags:        tags,
		Transcript:  transcript,
		Entities:    entities,
	}), nil
}

const recordColumns = `id, filename, title, description, tags, transcript, entities`

func (s *Store) Get(ctx context.Context, id string) (domain.AnalysisRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, recordColumns, s.table)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnalysisRecord{}, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("%w: get %s: %w", domain.ErrStoreIO, id, err)
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context) ([]domain.AnalysisRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY seq`, recordColumns, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", domain.ErrStoreIO, err)
	}
	defer rows.Close()

	records := []domain.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: list: %w", domain.ErrStoreIO, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", domain.ErrStoreIO, err)
	}
	return records, nil
}

func (s *Store) Embeddings(ctx context.Context, fn func(id string, embedding []float32) error) error {
	query := fmt.Sprintf(`SELECT id, embedding FROM %s ORDER BY seq`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: embeddings: %w", domain.ErrStoreIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			vec *pgvector.Vector
		)
		if err := rows.Scan(&id, &vec); err != nil {
			return fmt.Errorf("%w: embeddings: %w", domain.ErrStoreIO, err)
		}
		var embedding []float32
		if vec != nil {
			embedding = vec.Slice()
		}
		if err := fn(id, embedding); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: embeddings: %w", domain.ErrStoreIO, err)
	}
	return nil
}

func (s *Store) ReplaceEmbeddings(ctx context.Context, embeddings map[string][]float32, fp domain.Fingerprint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: replace embeddings: %w", domain.ErrStoreIO, err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&count); err != nil {
		return fmt.Errorf("%w: replace embeddings: %w", domain.ErrStoreIO, err)
	}
	if count != len(embeddings) {
		return fmt.Errorf("%w: replace embeddings: have %d records, got %d embeddings",
			domain.ErrStoreIO, count, len(embeddings))
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`UPDATE %s SET embedding = $1 WHERE id = $2`, s.table))
	if err != nil {
		return fmt.Errorf("%w: replace embeddings: %w", domain.ErrStoreIO, err)
	}
	defer stmt.Close()

	for id, vec := range embeddings {
		res, err := stmt.ExecContext(ctx, pgvector.NewVector(vec), id)
		if err != nil {
			return fmt.Errorf("%w: replace embedding %s: %w", domain.ErrStoreIO, id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: replace embeddings: record %s: %w", domain.ErrStoreIO, id, domain.ErrNotFound)
		}
	}

	if err := s.putFingerprint(ctx, tx, fp); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: replace embeddings: commit: %w", domain.ErrStoreIO, err)
	}
	return nil
}

func (s *Store) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	var fp domain.Fingerprint
	var raw string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT value FROM %s WHERE key = 'fingerprint'`, s.meta)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fp, nil
	}
	if err != nil {
		return fp, fmt.Errorf("%w: fingerprint: %w", domain.ErrStoreIO, err)
	}
	if err := json.Unmarshal([]byte(raw), &fp); err != nil {
		return fp, fmt.Errorf("%w: decode fingerprint: %w", domain.ErrStoreIO, err)
	}
	return fp, nil
}

func (s *Store) SetFingerprint(ctx context.Context, fp domain.Fingerprint) error {
	return s.putFingerprint(ctx, s.db, fp)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) putFingerprint(ctx context.Context, db execer, fp domain.Fingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES ('fingerprint', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, s.meta)
	if _, err := db.ExecContext(ctx, query, string(data)); err != nil {
		return fmt.Errorf("%w: set fingerprint: %w", domain.ErrStoreIO, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", domain.ErrStoreIO, err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
