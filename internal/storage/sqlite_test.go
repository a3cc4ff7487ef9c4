package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarsh/racode/internal/chunker"
)

func setupTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testChunk(path, symbol, content string, isDoc bool) chunker.Chunk {
	return chunker.Chunk{
		FilePath:   path,
		ChunkType:  chunker.TypeFunction,
		SymbolName: symbol,
		Content:    content,
		LineStart:  1,
		LineEnd:    5,
		IsDocFile:  isDoc,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	store := setupTestDB(t)
	assert.NotNil(t, store.db)
}

func TestInsertChunks(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	n, err := store.InsertChunks(ctx, []chunker.Chunk{
		testChunk("a.py", "alpha", "def alpha(): pass", false),
		testChunk("a.py", "beta", "def beta(): pass", false),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Inserting again duplicates; the store never deduplicates.
	n, err = store.InsertChunks(ctx, []chunker.Chunk{
		testChunk("a.py", "alpha", "def alpha(): pass", false),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := store.RemoveFileChunks(ctx, "a.py")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
}

func TestRemoveFileChunks_Idempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	removed, err := store.RemoveFileChunks(ctx, "never/indexed.py")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestRemoveFileChunks_DeletesRecord(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, []chunker.Chunk{testChunk("a.py", "f", "def f(): pass", false)})
	require.NoError(t, err)
	require.NoError(t, store.UpsertFileRecord(ctx, FileRecord{FilePath: "a.py", MtimeNs: 1, ChunkCount: 1}))

	_, err = store.RemoveFileChunks(ctx, "a.py")
	require.NoError(t, err)

	records, err := store.ListFileRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUpsertFileRecord(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFileRecord(ctx, FileRecord{FilePath: "a.py", MtimeNs: 100, ChunkCount: 2}))
	require.NoError(t, store.UpsertFileRecord(ctx, FileRecord{FilePath: "a.py", MtimeNs: 200, ChunkCount: 3}))

	records, err := store.ListFileRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(200), records[0].MtimeNs)
	assert.Equal(t, 3, records[0].ChunkCount)
}

func TestListFileRecords_Ordered(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertFileRecord(ctx, FileRecord{FilePath: "z.py", MtimeNs: 1, ChunkCount: 1}))
	require.NoError(t, store.UpsertFileRecord(ctx, FileRecord{FilePath: "a.py", MtimeNs: 1, ChunkCount: 1}))

	records, err := store.ListFileRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.py", records[0].FilePath)
	assert.Equal(t, "z.py", records[1].FilePath)
}

func TestClear(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, []chunker.Chunk{testChunk("a.py", "f", "def f(): pass", false)})
	require.NoError(t, err)
	require.NoError(t, store.UpsertFileRecord(ctx, FileRecord{FilePath: "a.py", MtimeNs: 1, ChunkCount: 1}))

	require.NoError(t, store.Clear(ctx))

	records, err := store.ListFileRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	results, err := store.Search(ctx, "f", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_Basic(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, []chunker.Chunk{
		testChunk("auth.py", "login", "def login(user): validate credentials", false),
		testChunk("db.py", "connect", "def connect(): open database", false),
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "credentials", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auth.py", results[0].FilePath)
	assert.Equal(t, "login", results[0].SymbolName)
	// BM25 rank is negative for a hit; lower means more relevant.
	assert.Less(t, results[0].Score, 0.0)
}

func TestSearch_DocBoostOrdering(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Same content, so the raw rank ties; the boost must break the tie in
	// favor of the documentation chunk.
	_, err := store.InsertChunks(ctx, []chunker.Chunk{
		testChunk("src/widget.py", "widget", "widget layout rules", false),
		testChunk("docs/FileStructure.md", "Layout", "widget layout rules", true),
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "widget", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "docs/FileStructure.md", results[0].FilePath)
	assert.InDelta(t, results[0].Score, results[1].Score*3.0, 0.05)
}

func TestSearch_ExtensionFilter(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, []chunker.Chunk{
		testChunk("guide.md", "Intro", "indexing overview", false),
		testChunk("index.py", "build", "def build(): indexing overview", false),
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "indexing", []string{".md"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "guide.md", results[0].FilePath)

	// "*" disables the filter entirely.
	results, err = store.Search(ctx, "indexing", []string{"*"}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = store.Search(ctx, "indexing", []string{".md", ".py"}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_Limit(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, []chunker.Chunk{
		testChunk("a.py", "a", "shared token alpha", false),
		testChunk("b.py", "b", "shared token beta", false),
		testChunk("c.py", "c", "shared token gamma", false),
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, "shared", nil, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_QuerySyntaxError(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, []chunker.Chunk{testChunk("a.py", "f", "content", false)})
	require.NoError(t, err)

	_, err = store.Search(ctx, `"unbalanced`, nil, 10)
	assert.ErrorIs(t, err, ErrQuerySyntax)
}

func TestSearch_NoResults(t *testing.T) {
	store := setupTestDB(t)

	results, err := store.Search(context.Background(), "nothingmatches", nil, 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestTx_CommitAppliesAll(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.InsertChunks(ctx, []chunker.Chunk{testChunk("a.py", "f", "def f(): pass", false)})
	require.NoError(t, err)
	require.NoError(t, tx.UpsertFileRecord(ctx, FileRecord{FilePath: "a.py", MtimeNs: 1, ChunkCount: 1}))
	require.NoError(t, tx.Commit())

	records, err := store.ListFileRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	results, err := store.Search(ctx, "pass", nil, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestTx_RollbackDiscardsAll(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.InsertChunks(ctx, []chunker.Chunk{testChunk("a.py", "f", "def f(): pass", false)})
	require.NoError(t, err)
	require.NoError(t, tx.UpsertFileRecord(ctx, FileRecord{FilePath: "a.py", MtimeNs: 1, ChunkCount: 1}))
	require.NoError(t, tx.Rollback())

	records, err := store.ListFileRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	results, err := store.Search(ctx, "pass", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTx_NestedNotSupported(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
}
