// Package mcp exposes the search index over the Model Context Protocol.
//
// Four tools are registered: code_search_search (reconcile-then-search with
// documentation windowing), code_search_get_references and
// code_search_get_definition (delegated to external language engines), and
// code_search_rebuild_index. Handlers return tool-level errors rather than
// protocol errors so clients always get a readable message.
package mcp
