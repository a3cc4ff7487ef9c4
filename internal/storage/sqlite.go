package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/dmarsh/racode/internal/chunker"
)

// docBoost multiplies the raw BM25 rank for priority documentation chunks.
// FTS5 rank improves toward negative, so the multiplier pushes doc hits
// ahead of equally relevant code hits.
const docBoost = 3.0

// SQLiteStore implements the Store interface using SQLite FTS5
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode so searches see either pre- or post-reconcile state,
	// never a partial one
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, store: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx    *sql.Tx
	store *SQLiteStore
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStore) querier() querier {
	return s.db
}

// Chunk operations

// insertChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) insertChunksWithQuerier(ctx context.Context, q querier, chunks []chunker.Chunk) (int, error) {
	query := `
		INSERT INTO chunks_content (
			file_path, chunk_type, symbol_name, content,
			line_start, line_end, is_doc_file
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	inserted := 0
	for i := range chunks {
		c := &chunks[i]
		isDoc := 0
		if c.IsDocFile {
			isDoc = 1
		}
		if _, err := q.ExecContext(ctx, query,
			c.FilePath, string(c.ChunkType), c.SymbolName, c.Content,
			c.LineStart, c.LineEnd, isDoc); err != nil {
			return inserted, fmt.Errorf("failed to insert chunk %s:%d: %w", c.FilePath, c.LineStart, err)
		}
		inserted++
	}
	return inserted, nil
}

func (s *SQLiteStore) InsertChunks(ctx context.Context, chunks []chunker.Chunk) (int, error) {
	return s.insertChunksWithQuerier(ctx, s.querier(), chunks)
}

// removeFileChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) removeFileChunksWithQuerier(ctx context.Context, q querier, filePath string) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM chunks_content WHERE file_path = ?`, filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to remove chunks for %s: %w", filePath, err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM file_meta WHERE file_path = ?`, filePath); err != nil {
		return int(removed), fmt.Errorf("failed to remove file record for %s: %w", filePath, err)
	}
	return int(removed), nil
}

func (s *SQLiteStore) RemoveFileChunks(ctx context.Context, filePath string) (int, error) {
	return s.removeFileChunksWithQuerier(ctx, s.querier(), filePath)
}

// File record operations

// upsertFileRecordWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) upsertFileRecordWithQuerier(ctx context.Context, q querier, rec FileRecord) error {
	query := `
		INSERT INTO file_meta (file_path, mtime_ns, chunk_count)
		VALUES (?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			mtime_ns = excluded.mtime_ns,
			chunk_count = excluded.chunk_count
	`
	if _, err := q.ExecContext(ctx, query, rec.FilePath, rec.MtimeNs, rec.ChunkCount); err != nil {
		return fmt.Errorf("failed to upsert file record for %s: %w", rec.FilePath, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertFileRecord(ctx context.Context, rec FileRecord) error {
	return s.upsertFileRecordWithQuerier(ctx, s.querier(), rec)
}

// listFileRecordsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) listFileRecordsWithQuerier(ctx context.Context, q querier) ([]FileRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT file_path, mtime_ns, chunk_count
		FROM file_meta
		ORDER BY file_path
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	records := make([]FileRecord, 0)
	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(&rec.FilePath, &rec.MtimeNs, &rec.ChunkCount); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) ListFileRecords(ctx context.Context) ([]FileRecord, error) {
	return s.listFileRecordsWithQuerier(ctx, s.querier())
}

// clearWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStore) clearWithQuerier(ctx context.Context, q querier) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM chunks_content`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM file_meta`); err != nil {
		return fmt.Errorf("failed to clear file records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.clearWithQuerier(ctx, s.querier())
}

// Search operations

// searchWithQuerier is the internal implementation that uses a querier.
// Rank is the FTS5 BM25 score (lower is better); priority documentation
// chunks have it multiplied by docBoost before ordering.
func (s *SQLiteStore) searchWithQuerier(ctx context.Context, q querier, query string, extensions []string, limit int) ([]ScoredChunk, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT c.file_path, c.chunk_type, c.symbol_name, c.content,
		       c.line_start, c.line_end,
		       rank * CASE WHEN c.is_doc_file = 1 THEN ? ELSE 1.0 END AS score
		FROM chunks
		JOIN chunks_content c ON chunks.rowid = c.id
		WHERE chunks MATCH ?
	`)
	args := []interface{}{docBoost, query}

	if filtered := filterExtensions(extensions); len(filtered) > 0 {
		conds := make([]string, len(filtered))
		for i, ext := range filtered {
			conds[i] = "c.file_path LIKE ?"
			args = append(args, "%"+ext)
		}
		sb.WriteString(" AND (" + strings.Join(conds, " OR ") + ")")
	}

	sb.WriteString(" ORDER BY score LIMIT ?")
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		// The only caller-controlled input reaching the engine is the MATCH
		// expression; an execution error here means FTS5 rejected it.
		return nil, fmt.Errorf("%w: %v", ErrQuerySyntax, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]ScoredChunk, 0)
	for rows.Next() {
		var r ScoredChunk
		if err := rows.Scan(&r.FilePath, &r.ChunkType, &r.SymbolName, &r.Content,
			&r.LineStart, &r.LineEnd, &r.Score); err != nil {
			return nil, err
		}
		r.Score = math.Round(r.Score*100) / 100
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Search(ctx context.Context, query string, extensions []string, limit int) ([]ScoredChunk, error) {
	return s.searchWithQuerier(ctx, s.querier(), query, extensions, limit)
}

// filterExtensions normalizes the extension filter: nil, empty, or a list
// containing "*" means match all and returns nil.
func filterExtensions(extensions []string) []string {
	if len(extensions) == 0 {
		return nil
	}
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if ext == "*" {
			return nil
		}
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// Transaction implementations delegate to the internal querier helpers

func (t *sqliteTx) InsertChunks(ctx context.Context, chunks []chunker.Chunk) (int, error) {
	return t.store.insertChunksWithQuerier(ctx, t.querier(), chunks)
}

func (t *sqliteTx) RemoveFileChunks(ctx context.Context, filePath string) (int, error) {
	return t.store.removeFileChunksWithQuerier(ctx, t.querier(), filePath)
}

func (t *sqliteTx) UpsertFileRecord(ctx context.Context, rec FileRecord) error {
	return t.store.upsertFileRecordWithQuerier(ctx, t.querier(), rec)
}

func (t *sqliteTx) ListFileRecords(ctx context.Context) ([]FileRecord, error) {
	return t.store.listFileRecordsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Clear(ctx context.Context) error {
	return t.store.clearWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Search(ctx context.Context, query string, extensions []string, limit int) ([]ScoredChunk, error) {
	return t.store.searchWithQuerier(ctx, t.querier(), query, extensions, limit)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, fmt.Errorf("nested transactions not supported")
}
