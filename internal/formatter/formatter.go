// Package formatter post-processes raw search hits for display. Ranking
// boosts are already applied inside the store's search; what remains is
// trimming oversized documentation chunks to a bounded window around the
// matched keyword. Code chunks pass through whole for structural context.
package formatter

import (
	"strings"

	"github.com/dmarsh/racode/internal/storage"
)

// DefaultContextLines is the total window size around a keyword match.
const DefaultContextLines = 10

// FormatResults windows the content of prose (.md) results around the first
// query match. Results are modified in place and returned for convenience.
func FormatResults(results []storage.ScoredChunk, query string, contextLines int) []storage.ScoredChunk {
	for i := range results {
		if strings.HasSuffix(results[i].FilePath, ".md") {
			results[i].Content = WindowContent(results[i].Content, query, contextLines)
		}
	}
	return results
}

// WindowContent extracts a window of at most contextLines lines around the
// first line matching any whitespace-separated query token, case
// insensitively. The matched line sits at window-relative index
// contextLines/2; when that would run past the start or end of the chunk
// the whole window shifts rather than shrinking. Content that already fits
// is returned unchanged, as is content when contextLines is not positive.
func WindowContent(content, query string, contextLines int) string {
	if contextLines <= 0 {
		contextLines = DefaultContextLines
	}

	lines := strings.Split(content, "\n")
	if len(lines) <= contextLines {
		return content
	}

	tokens := strings.Fields(strings.ToLower(query))

	// First matching line; default to the top of the chunk.
	matchIdx := 0
	for i, line := range lines {
		if matchesAny(strings.ToLower(line), tokens) {
			matchIdx = i
			break
		}
	}

	above := contextLines / 2
	below := contextLines - above - 1

	start := matchIdx - above
	end := matchIdx + below + 1 // exclusive

	// Shift the window at chunk boundaries instead of truncating it.
	if start < 0 {
		end = min(len(lines), end-start)
		start = 0
	}
	if end > len(lines) {
		start = max(0, start-(end-len(lines)))
		end = len(lines)
	}

	return strings.Join(lines[start:end], "\n")
}

func matchesAny(line string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(line, tok) {
			return true
		}
	}
	return false
}
