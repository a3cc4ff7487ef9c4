// Package lsp bridges symbol reference and definition lookups to external
// language-analysis engines (jedi for Python, ts-morph for TypeScript) via
// bounded subprocess calls.
//
// The contract with the rest of the system is intentionally narrow: given
// a symbol name and a language, return a list of locations. Launch
// failures, timeouts, and malformed helper output are distinct error kinds
// (ErrUnavailable, ErrTimeout, ErrParse) and never affect the search index.
package lsp
