package formatter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarsh/racode/internal/storage"
)

func numberedLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i+1)
	}
	return strings.Join(lines, "\n")
}

func TestWindowContent_ShortContentUnchanged(t *testing.T) {
	content := numberedLines(10)
	assert.Equal(t, content, WindowContent(content, "line", 10))
}

func TestWindowContent_CentersMatch(t *testing.T) {
	// 30 lines, match in the middle: the matched line lands at relative
	// index contextLines/2.
	lines := strings.Split(numberedLines(30), "\n")
	lines[14] = "the needle sits here"
	content := strings.Join(lines, "\n")

	out := WindowContent(content, "needle", 10)
	got := strings.Split(out, "\n")
	require.Len(t, got, 10)
	assert.Equal(t, "the needle sits here", got[5])
	assert.Equal(t, "line 10", got[0])
	assert.Equal(t, "line 19", got[9])
}

func TestWindowContent_ShiftsAtEnd(t *testing.T) {
	// Match near the end: the window shifts back instead of shrinking.
	lines := strings.Split(numberedLines(20), "\n")
	lines[18] = "needle near the end"
	content := strings.Join(lines, "\n")

	out := WindowContent(content, "needle", 10)
	got := strings.Split(out, "\n")
	require.Len(t, got, 10)
	assert.Equal(t, "line 11", got[0])
	assert.Equal(t, "line 20", got[9])
}

func TestWindowContent_ExactEndFit(t *testing.T) {
	// 20 lines, match on the sixteenth: the window lands flush against the
	// end of the chunk without shifting.
	lines := strings.Split(numberedLines(20), "\n")
	lines[15] = "needle on line sixteen"
	content := strings.Join(lines, "\n")

	out := WindowContent(content, "needle", 10)
	got := strings.Split(out, "\n")
	require.Len(t, got, 10)
	assert.Equal(t, "line 11", got[0])
	assert.Equal(t, "needle on line sixteen", got[5])
	assert.Equal(t, "line 20", got[9])
}

func TestWindowContent_ShiftsAtStart(t *testing.T) {
	lines := strings.Split(numberedLines(20), "\n")
	lines[1] = "needle near the top"
	content := strings.Join(lines, "\n")

	out := WindowContent(content, "needle", 10)
	got := strings.Split(out, "\n")
	require.Len(t, got, 10)
	assert.Equal(t, "line 1", got[0])
	assert.Equal(t, "needle near the top", got[1])
	assert.Equal(t, "line 10", got[9])
}

func TestWindowContent_NoMatchDefaultsToTop(t *testing.T) {
	content := numberedLines(25)
	out := WindowContent(content, "absent", 10)
	got := strings.Split(out, "\n")
	require.Len(t, got, 10)
	assert.Equal(t, "line 1", got[0])
}

func TestWindowContent_CaseInsensitiveTokens(t *testing.T) {
	lines := strings.Split(numberedLines(25), "\n")
	lines[19] = "The NEEDLE is capitalized"
	content := strings.Join(lines, "\n")

	out := WindowContent(content, "needle missingtoken", 10)
	assert.Contains(t, out, "NEEDLE")
}

func TestWindowContent_NonPositiveUsesDefault(t *testing.T) {
	content := numberedLines(40)
	out := WindowContent(content, "line 30", 0)
	assert.Len(t, strings.Split(out, "\n"), DefaultContextLines)
}

func TestFormatResults_OnlyMarkdownWindowed(t *testing.T) {
	long := numberedLines(30)
	results := []storage.ScoredChunk{
		{FilePath: "docs/guide.md", Content: long},
		{FilePath: "src/app.py", Content: long},
	}

	out := FormatResults(results, "line 20", 10)
	assert.Len(t, strings.Split(out[0].Content, "\n"), 10)
	assert.Equal(t, long, out[1].Content)
}
