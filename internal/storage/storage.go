package storage

import (
	"context"
	"errors"

	"github.com/dmarsh/racode/internal/chunker"
)

var (
	// ErrQuerySyntax is returned when the full-text engine rejects a query.
	// Callers must treat it as distinct from an empty result set.
	ErrQuerySyntax = errors.New("invalid search query")
)

// FileRecord is the per-file metadata used to detect staleness.
type FileRecord struct {
	FilePath   string
	MtimeNs    int64
	ChunkCount int
}

// ScoredChunk is a search hit. Score is the BM25 rank multiplied by the
// documentation boost; lower is more relevant.
type ScoredChunk struct {
	FilePath   string  `json:"file_path"`
	ChunkType  string  `json:"chunk_type"`
	SymbolName string  `json:"symbol_name"`
	Content    string  `json:"content"`
	LineStart  int     `json:"line_start"`
	LineEnd    int     `json:"line_end"`
	Score      float64 `json:"score"`
}

// Store is the persistence boundary for chunks and file metadata. It owns
// all mutation: callers never touch rows directly. After every completed
// operation the set of distinct chunk paths equals the set of file record
// paths — no orphaned chunks, no metadata without content.
type Store interface {
	// InsertChunks appends chunks for one file and returns the number
	// inserted. It never deduplicates; remove existing chunks for the file
	// first when re-indexing.
	InsertChunks(ctx context.Context, chunks []chunker.Chunk) (int, error)

	// RemoveFileChunks deletes every chunk and the file record for a path.
	// Idempotent: removing a path that was never indexed is a no-op. It
	// returns the number of chunk rows removed.
	RemoveFileChunks(ctx context.Context, filePath string) (int, error)

	// UpsertFileRecord replaces any existing record for the path.
	UpsertFileRecord(ctx context.Context, rec FileRecord) error

	// ListFileRecords returns all file records ordered by path.
	ListFileRecords(ctx context.Context) ([]FileRecord, error)

	// Clear removes every chunk and file record.
	Clear(ctx context.Context) error

	// Search runs a ranked full-text match over chunk content. A nil
	// extensions slice, or one containing "*", matches all files;
	// otherwise only chunks whose path ends with one of the extensions
	// are eligible. A malformed query yields ErrQuerySyntax.
	Search(ctx context.Context, query string, extensions []string, limit int) ([]ScoredChunk, error)

	// BeginTx starts a transaction covering the mutation operations.
	BeginTx(ctx context.Context) (Tx, error)

	Close() error
}

// Tx is one atomic batch of index mutations. Either the whole batch commits,
// including file record updates, or none of it does.
type Tx interface {
	Commit() error
	Rollback() error
	Store
}
