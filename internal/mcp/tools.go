package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dmarsh/racode/internal/formatter"
	"github.com/dmarsh/racode/internal/lsp"
	"github.com/dmarsh/racode/internal/storage"
)

// searchInput is the validated argument set for code_search_search.
type searchInput struct {
	Query      string
	Extensions string
	Limit      int
}

func (in searchInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Query, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Extensions, validation.Length(0, 100)),
		validation.Field(&in.Limit, validation.Required, validation.Min(1), validation.Max(50)),
	)
}

// handleSearch handles the code_search_search tool invocation. The index is
// reconciled against the file tree first, so results never lag further than
// the current call.
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	in := searchInput{
		Query:      getStringDefault(args, "query", ""),
		Extensions: getStringDefault(args, "extensions", ".md"),
		Limit:      getIntDefault(args, "limit", 5),
	}
	if err := in.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	if _, err := s.indexer.Reconcile(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index refresh failed: %v", err)), nil
	}

	results, err := s.store.Search(ctx, in.Query, splitExtensions(in.Extensions), in.Limit)
	if err != nil {
		if errors.Is(err, storage.ErrQuerySyntax) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid query syntax: %v", err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	results = formatter.FormatResults(results, in.Query, s.contextLines)

	response := map[string]interface{}{
		"query":   in.Query,
		"count":   len(results),
		"results": results,
	}
	if len(results) == 0 {
		response["results"] = []storage.ScoredChunk{}
		response["message"] = "No results found. Try broader keywords or extensions='*'."
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetReferences handles the code_search_get_references tool invocation
func (s *Server) handleGetReferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleSymbolLookup(ctx, request, s.bridge.References)
}

// handleGetDefinition handles the code_search_get_definition tool invocation
func (s *Server) handleGetDefinition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleSymbolLookup(ctx, request, s.bridge.Definition)
}

func (s *Server) handleSymbolLookup(ctx context.Context, request mcp.CallToolRequest,
	lookup func(context.Context, string, lsp.Language) ([]lsp.Location, error)) (*mcp.CallToolResult, error) {

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}

	symbol := getStringDefault(args, "symbol", "")
	if symbol == "" {
		return mcp.NewToolResultError("symbol parameter is required"), nil
	}
	lang := lsp.Language(getStringDefault(args, "language", string(lsp.LangPython)))

	locations, err := lookup(ctx, symbol, lang)
	if err != nil {
		switch {
		case errors.Is(err, lsp.ErrUnsupportedLanguage):
			return mcp.NewToolResultError(fmt.Sprintf("unsupported language %q; use python or typescript", lang)), nil
		case errors.Is(err, lsp.ErrTimeout):
			return mcp.NewToolResultError(fmt.Sprintf("symbol lookup timed out: %v", err)), nil
		case errors.Is(err, lsp.ErrUnavailable):
			return mcp.NewToolResultError(fmt.Sprintf("language helper unavailable: %v", err)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("symbol lookup failed: %v", err)), nil
		}
	}

	if locations == nil {
		locations = []lsp.Location{}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"symbol":    symbol,
		"language":  lang,
		"count":     len(locations),
		"locations": locations,
	})), nil
}

// handleRebuildIndex handles the code_search_rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.indexer.Rebuild(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rebuild failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"rebuilt": true,
		"stats":   stats,
	})), nil
}

// Helper functions

// splitExtensions parses the comma-separated extensions argument. "*" or an
// empty string means no filter.
func splitExtensions(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil
	}
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "*" {
			return nil
		}
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		exts = append(exts, part)
	}
	return exts
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
