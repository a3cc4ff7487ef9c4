package chunker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrNotText is returned when a file's bytes are not valid UTF-8.
var ErrNotText = errors.New("file is not valid UTF-8 text")

// ChunkType identifies how a chunk was carved out of its file.
type ChunkType string

const (
	// TypeModuleHeader is the text preceding the first structural marker.
	TypeModuleHeader ChunkType = "module_header"
	// TypeSection is one Markdown heading section.
	TypeSection ChunkType = "section"
	// TypeFunction is a top-level function declaration.
	TypeFunction ChunkType = "function"
	// TypeClass is a top-level class declaration.
	TypeClass ChunkType = "class"
	// TypeFullFile covers files with no recognized structure.
	TypeFullFile ChunkType = "full_file"
)

// Chunk is a contiguous span of a file's text treated as one retrievable
// unit. LineStart and LineEnd are 1-based, inclusive, and always refer to
// the original untrimmed file so offsets map back to the source.
type Chunk struct {
	FilePath   string
	ChunkType  ChunkType
	SymbolName string
	Content    string
	LineStart  int
	LineEnd    int
	IsDocFile  bool
}

// docFileSuffixes lists the documentation files that receive a ranking boost.
var docFileSuffixes = []string{"FileStructure.md", "IntegrationGuide.md"}

// IsDocFile reports whether path names a priority documentation file.
func IsDocFile(path string) bool {
	for _, suffix := range docFileSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// Structural markers. These are pattern heuristics, not parsers: they match
// declarations at column zero and nothing else.
var (
	headingRe   = regexp.MustCompile(`^(#{2,3})\s+(.+)$`)
	decoratorRe = regexp.MustCompile(`^@\w+`)
	declRe      = regexp.MustCompile(`^(def|class)\s+(\w+)`)
	exportRe    = regexp.MustCompile(`^(?:export\s+)?(function|class|interface|const|type|enum)\s+(\w+)`)
)

// Chunker splits file text into semantically coherent chunks. The strategy
// is selected per file by extension and the result is deterministic for a
// given (path, content) pair.
type Chunker struct{}

// New creates a new Chunker instance.
func New() *Chunker {
	return &Chunker{}
}

// ChunkFile reads fullPath and splits its content. It returns an error for
// files that do not exist or cannot be decoded as UTF-8 text; it never
// fabricates a chunk. filePath is the identifier stored on each chunk,
// typically relative to the project root.
func (c *Chunker) ChunkFile(filePath, fullPath string) ([]Chunk, error) {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fullPath, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: %w", fullPath, ErrNotText)
	}
	return c.Chunk(filePath, string(data)), nil
}

// Chunk splits content into ordered chunks. Pure: no I/O, no side effects.
func (c *Chunker) Chunk(filePath, content string) []Chunk {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md":
		return chunkMarkdown(filePath, content)
	case ".py":
		return chunkDeclarations(filePath, content)
	case ".ts", ".tsx", ".js", ".jsx":
		return chunkExports(filePath, content)
	default:
		return chunkWhole(filePath, content)
	}
}

// appendChunk trims the accumulated lines and appends a chunk unless the
// trimmed content is empty. Empty chunks are never emitted.
func appendChunk(chunks []Chunk, filePath string, ctype ChunkType, symbol string, lines []string, lineStart, lineEnd int, isDoc bool) []Chunk {
	content := strings.TrimSpace(strings.Join(lines, "\n"))
	if content == "" {
		return chunks
	}
	return append(chunks, Chunk{
		FilePath:   filePath,
		ChunkType:  ctype,
		SymbolName: symbol,
		Content:    content,
		LineStart:  lineStart,
		LineEnd:    lineEnd,
		IsDocFile:  isDoc,
	})
}

// chunkMarkdown splits at level-2 and level-3 headings. Text before the
// first heading becomes one module_header chunk; each heading and the text
// until the next heading becomes a section chunk named by the heading.
func chunkMarkdown(filePath, content string) []Chunk {
	lines := strings.Split(content, "\n")
	isDoc := IsDocFile(filePath)

	var chunks []Chunk
	var current []string
	heading := ""
	sawHeading := false
	start := 1

	for i, line := range lines {
		lineNo := i + 1
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			current = append(current, line)
			continue
		}

		ctype := TypeSection
		if !sawHeading {
			ctype = TypeModuleHeader
		}
		chunks = appendChunk(chunks, filePath, ctype, heading, current, start, lineNo-1, isDoc)

		sawHeading = true
		heading = strings.TrimSpace(m[2])
		current = []string{line}
		start = lineNo
	}

	ctype := TypeSection
	if !sawHeading {
		ctype = TypeModuleHeader
	}
	return appendChunk(chunks, filePath, ctype, heading, current, start, len(lines), isDoc)
}

// chunkDeclarations splits at top-level def/class declarations. Decorator
// lines directly preceding a declaration are absorbed into the new chunk:
// the chunk's start line moves back by the number of decorators and the
// previous chunk's end line excludes them. A decorator run not followed by
// a declaration belongs to the chunk in progress.
func chunkDeclarations(filePath, content string) []Chunk {
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	var current []string
	var decorators []string
	symbol := ""
	ctype := TypeModuleHeader
	start := 1

	for i, line := range lines {
		lineNo := i + 1
		if decoratorRe.MatchString(line) {
			decorators = append(decorators, line)
			continue
		}

		m := declRe.FindStringSubmatch(line)
		if m == nil {
			if len(decorators) > 0 {
				current = append(current, decorators...)
				decorators = nil
			}
			current = append(current, line)
			continue
		}

		chunks = appendChunk(chunks, filePath, ctype, symbol, current, start, lineNo-1-len(decorators), false)

		symbol = m[2]
		if m[1] == "def" {
			ctype = TypeFunction
		} else {
			ctype = TypeClass
		}
		current = append(append([]string{}, decorators...), line)
		start = lineNo - len(decorators)
		decorators = nil
	}

	if len(decorators) > 0 {
		current = append(current, decorators...)
	}
	return appendChunk(chunks, filePath, ctype, symbol, current, start, len(lines), false)
}

// chunkExports splits at top-level declarations carrying an optional export
// qualifier. The chunk type is the matched keyword itself (function, class,
// interface, const, type, enum).
func chunkExports(filePath, content string) []Chunk {
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	var current []string
	symbol := ""
	ctype := TypeModuleHeader
	start := 1

	for i, line := range lines {
		lineNo := i + 1
		m := exportRe.FindStringSubmatch(line)
		if m == nil {
			current = append(current, line)
			continue
		}

		chunks = appendChunk(chunks, filePath, ctype, symbol, current, start, lineNo-1, false)

		symbol = m[2]
		ctype = ChunkType(m[1])
		current = []string{line}
		start = lineNo
	}

	return appendChunk(chunks, filePath, ctype, symbol, current, start, len(lines), false)
}

// chunkWhole emits the entire file as a single full_file chunk.
func chunkWhole(filePath, content string) []Chunk {
	lines := strings.Split(content, "\n")
	return appendChunk(nil, filePath, TypeFullFile, "", lines, 1, len(lines), false)
}
