package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchTool returns the tool definition for code_search_search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "code_search_search",
		Description: "Search the indexed codebase with keyword queries; the index is refreshed before every search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Full-text search query (keywords; FTS5 operators allowed)",
				},
				"extensions": map[string]interface{}{
					"type":        "string",
					"description": "Comma-separated file extensions to search (e.g. '.py,.ts'), or '*' for all indexed files",
					"default":     ".md",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     5,
					"minimum":     1,
					"maximum":     50,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getReferencesTool returns the tool definition for code_search_get_references
func getReferencesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "code_search_get_references",
		Description: "Find all reference sites for a symbol using a language-analysis engine",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"symbol": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name to look up",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Language of the symbol",
					"enum":        []string{"python", "typescript"},
					"default":     "python",
				},
			},
			Required: []string{"symbol"},
		},
	}
}

// getDefinitionTool returns the tool definition for code_search_get_definition
func getDefinitionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "code_search_get_definition",
		Description: "Find the definition site of a symbol using a language-analysis engine",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"symbol": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name to look up",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Language of the symbol",
					"enum":        []string{"python", "typescript"},
					"default":     "python",
				},
			},
			Required: []string{"symbol"},
		},
	}
}

// rebuildIndexTool returns the tool definition for code_search_rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "code_search_rebuild_index",
		Description: "Drop the entire index and rebuild it from scratch",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
