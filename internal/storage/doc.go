// Package storage provides SQLite-based persistence and ranked full-text
// retrieval for file chunks.
//
// # Database Schema
//
// Tables:
//   - file_meta: per-file metadata (path, mtime in nanoseconds, chunk count)
//     used to detect stale files during reconciliation
//   - chunks_content: the backing chunk rows
//   - chunks: an FTS5 external-content projection over chunks_content, kept
//     in sync by AFTER INSERT/DELETE/UPDATE triggers
//
// Content and its searchable projection are two views of the same record
// set: mutations target chunks_content only and the triggers keep the FTS
// index consistent inside the same transaction.
//
// # Consistency
//
// The set of distinct file paths in chunks_content must equal the set of
// paths in file_meta after every completed operation. Callers batch related
// mutations in one transaction via BeginTx so the invariant survives
// mid-batch failures.
//
// # Ranking
//
// Search orders by the FTS5 BM25 rank (lower is better) multiplied by 3.0
// for priority documentation chunks, so docs win ties against code.
package storage
