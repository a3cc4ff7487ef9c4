// Package chunker splits source and documentation files into semantically
// coherent chunks for full-text indexing.
//
// The splitting rules are deliberately regex-driven heuristics rather than
// real parsers. Strategy selection is a closed set keyed by file extension:
//
//   - .md                  — split at ## and ### headings
//   - .py                  — split at column-zero def/class, absorbing decorators
//   - .ts .tsx .js .jsx    — split at optional-export top-level declarations
//   - everything else      — one full_file chunk
//
// Invariants per file: chunks come out in file order, line ranges never
// overlap and strictly increase, and concatenating chunk spans (ignoring
// whitespace-only gaps) reconstructs the file. A chunk whose trimmed
// content is empty is never emitted.
package chunker
