// Package indexer reconciles the persisted chunk index with the live file
// tree.
//
// A reconcile pass walks the project root, classifies every eligible file
// as new, modified, deleted, or unchanged by comparing modification
// timestamps against stored file records, and applies only the necessary
// deltas. The whole delta — removals, insertions, and file record updates —
// is one storage transaction: it commits entirely or not at all.
//
// Per-file problems (unreadable files, invalid UTF-8) never abort a pass;
// the file is skipped for the cycle and reported in Stats.Errors.
//
// Rebuild is the degenerate case: clear everything, then index every
// discovered file as new.
package indexer
