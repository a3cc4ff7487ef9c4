package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmarsh/racode/internal/chunker"
	"github.com/dmarsh/racode/internal/storage"
)

// SkipDirs are directory names excluded from the walk: version control,
// dependency caches, build output, and virtual environments.
var SkipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
	"dist":         {},
	"build":        {},
	".next":        {},
	".cache":       {},
	"coverage":     {},
}

// IndexableExtensions are the file extensions eligible for indexing.
var IndexableExtensions = map[string]struct{}{
	".py":   {},
	".ts":   {},
	".tsx":  {},
	".js":   {},
	".jsx":  {},
	".md":   {},
	".txt":  {},
	".json": {},
	".yaml": {},
	".yml":  {},
	".toml": {},
}

// Stats reports the outcome of a reconcile or rebuild pass.
type Stats struct {
	FilesNew       int           `json:"files_new"`
	FilesModified  int           `json:"files_modified"`
	FilesDeleted   int           `json:"files_deleted"`
	FilesUnchanged int           `json:"files_unchanged"`
	FilesRemoved   int           `json:"files_removed"`
	ChunksCreated  int           `json:"chunks_created"`
	ChunksRemoved  int           `json:"chunks_removed"`
	Errors         []string      `json:"errors"`
	Duration       time.Duration `json:"-"`
	DurationSecs   float64       `json:"duration_seconds"`
}

// Indexer keeps the persisted index consistent with the live file tree.
// Structural operations (Reconcile, Rebuild) are serialized internally;
// searches against the store may run concurrently with them and observe
// either the pre- or post-reconcile state.
type Indexer struct {
	root    string
	store   storage.Store
	chunker *chunker.Chunker
	logger  *slog.Logger
	workers int

	mu sync.Mutex // serializes structural index operations
}

// New creates an Indexer rooted at the project directory.
func New(root string, store storage.Store, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		root:    root,
		store:   store,
		chunker: chunker.New(),
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// classification partitions the file universe for one reconcile pass.
// newFiles, modified, and unchanged together equal the current walk;
// deleted is stored-minus-current. The four sets are pairwise disjoint.
type classification struct {
	newFiles  []string
	modified  []string
	deleted   []string
	unchanged []string
}

// collectFiles walks the project tree and records (relative path, mtime ns)
// for every eligible file. Files that cannot be stat'd are skipped.
func (ix *Indexer) collectFiles() (map[string]int64, error) {
	files := make(map[string]int64)

	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtree: leave it unindexed rather than abort.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if _, skip := SkipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := IndexableExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[filepath.ToSlash(rel)] = info.ModTime().UnixNano()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", ix.root, err)
	}
	return files, nil
}

// classify compares the current walk against stored file records.
func (ix *Indexer) classify(ctx context.Context, current map[string]int64) (*classification, error) {
	records, err := ix.store.ListFileRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}

	stored := make(map[string]int64, len(records))
	for _, rec := range records {
		stored[rec.FilePath] = rec.MtimeNs
	}

	cls := &classification{}
	for path, mtime := range current {
		storedMtime, ok := stored[path]
		switch {
		case !ok:
			cls.newFiles = append(cls.newFiles, path)
		case storedMtime != mtime:
			cls.modified = append(cls.modified, path)
		default:
			cls.unchanged = append(cls.unchanged, path)
		}
	}
	for path := range stored {
		if _, ok := current[path]; !ok {
			cls.deleted = append(cls.deleted, path)
		}
	}

	// Deterministic apply order
	sort.Strings(cls.newFiles)
	sort.Strings(cls.modified)
	sort.Strings(cls.deleted)
	sort.Strings(cls.unchanged)
	return cls, nil
}

// chunkFiles chunks the given relative paths concurrently. Per-file failures
// (unreadable, not UTF-8) go into errs; the file is simply left out of the
// result and stays unindexed for this cycle.
func (ix *Indexer) chunkFiles(ctx context.Context, paths []string) (map[string][]chunker.Chunk, []string) {
	var (
		mu      sync.Mutex
		chunked = make(map[string][]chunker.Chunk, len(paths))
		errs    []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunks, err := ix.chunker.ChunkFile(path, filepath.Join(ix.root, filepath.FromSlash(path)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", path, err))
				ix.logger.Warn("chunking failed, file left unindexed",
					slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}
			chunked[path] = chunks
			return nil
		})
	}
	// Only context cancellation propagates out of the group.
	if err := g.Wait(); err != nil {
		mu.Lock()
		errs = append(errs, err.Error())
		mu.Unlock()
	}

	sort.Strings(errs)
	return chunked, errs
}

// Reconcile compares the live file tree against stored metadata and applies
// only the necessary deltas in one atomic transaction. Per-file failures
// are collected in Stats.Errors; a commit failure rolls the whole batch
// back and is returned as a single fatal error.
func (ix *Indexer) Reconcile(ctx context.Context) (*Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()

	current, err := ix.collectFiles()
	if err != nil {
		return nil, err
	}
	cls, err := ix.classify(ctx, current)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		FilesNew:       len(cls.newFiles),
		FilesModified:  len(cls.modified),
		FilesDeleted:   len(cls.deleted),
		FilesUnchanged: len(cls.unchanged),
		Errors:         make([]string, 0),
	}

	// Chunking is pure CPU plus reads; do it before the transaction opens.
	toIndex := append(append([]string{}, cls.newFiles...), cls.modified...)
	chunked, errs := ix.chunkFiles(ctx, toIndex)
	stats.Errors = append(stats.Errors, errs...)

	if err := ix.applyDelta(ctx, cls, current, chunked, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	stats.DurationSecs = stats.Duration.Seconds()
	ix.logger.Info("reconcile complete",
		slog.Int("new", stats.FilesNew),
		slog.Int("modified", stats.FilesModified),
		slog.Int("deleted", stats.FilesDeleted),
		slog.Int("unchanged", stats.FilesUnchanged),
		slog.Int("chunks_created", stats.ChunksCreated),
		slog.Int("chunks_removed", stats.ChunksRemoved),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// applyDelta applies removals and insertions for one reconcile pass inside
// a single transaction.
func (ix *Indexer) applyDelta(ctx context.Context, cls *classification, current map[string]int64,
	chunked map[string][]chunker.Chunk, stats *Stats) error {

	tx, err := ix.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin reconcile transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range cls.deleted {
		removed, err := tx.RemoveFileChunks(ctx, path)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		stats.ChunksRemoved += removed
		stats.FilesRemoved++
	}

	for _, path := range cls.modified {
		removed, err := tx.RemoveFileChunks(ctx, path)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		stats.ChunksRemoved += removed
		stats.FilesRemoved++
	}

	for _, path := range append(append([]string{}, cls.modified...), cls.newFiles...) {
		if err := ix.indexChunks(ctx, tx, path, current[path], chunked, stats); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reconcile commit failed, index unchanged: %w", err)
	}
	return nil
}

// indexChunks inserts the pre-computed chunks for one file and upserts its
// record. Files that failed chunking, or produced no chunks, get no record:
// metadata without content would break the store invariant.
func (ix *Indexer) indexChunks(ctx context.Context, tx storage.Tx, path string, mtimeNs int64,
	chunked map[string][]chunker.Chunk, stats *Stats) error {

	chunks, ok := chunked[path]
	if !ok || len(chunks) == 0 {
		return nil
	}

	inserted, err := tx.InsertChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	if err := tx.UpsertFileRecord(ctx, storage.FileRecord{
		FilePath:   path,
		MtimeNs:    mtimeNs,
		ChunkCount: len(chunks),
	}); err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	stats.ChunksCreated += inserted
	return nil
}

// Rebuild clears all stored chunks and file records, then indexes every
// discovered file as new. The clear and the re-index are one transaction,
// so a failure leaves the prior index intact.
func (ix *Indexer) Rebuild(ctx context.Context) (*Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()

	current, err := ix.collectFiles()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(current))
	for path := range current {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	stats := &Stats{
		FilesNew: len(paths),
		Errors:   make([]string, 0),
	}

	chunked, errs := ix.chunkFiles(ctx, paths)
	stats.Errors = append(stats.Errors, errs...)

	tx, err := ix.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.Clear(ctx); err != nil {
		return nil, fmt.Errorf("rebuild failed: %w", err)
	}
	for _, path := range paths {
		if err := ix.indexChunks(ctx, tx, path, current[path], chunked, stats); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("rebuild commit failed, index unchanged: %w", err)
	}

	stats.Duration = time.Since(start)
	stats.DurationSecs = stats.Duration.Seconds()
	ix.logger.Info("rebuild complete",
		slog.Int("files", stats.FilesNew),
		slog.Int("chunks_created", stats.ChunksCreated),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}
