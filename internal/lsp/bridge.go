package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// Default timeout for the external language-analysis helpers.
const DefaultTimeout = 30 * time.Second

var (
	// ErrUnavailable is returned when a helper cannot be launched or exits
	// with a failure.
	ErrUnavailable = errors.New("language helper unavailable")
	// ErrTimeout is returned when a helper exceeds the configured timeout.
	ErrTimeout = errors.New("language helper timed out")
	// ErrParse is returned when a helper produces output that is not valid
	// JSON.
	ErrParse = errors.New("language helper output unparseable")
	// ErrUnsupportedLanguage is returned for languages without a helper.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Language selects which external engine resolves a symbol.
type Language string

const (
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
)

// Location is one resolved reference or definition site.
type Location struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Context  string `json:"context"`
	Kind     string `json:"kind"`
}

// Bridge delegates symbol lookup to third-party language-analysis engines
// running as subprocesses. It never touches the search index: a helper
// failure is reported to the caller and nothing else.
type Bridge struct {
	projectRoot string
	timeout     time.Duration

	// Helper command prefixes; the operation, project root, and symbol are
	// appended as arguments. Overridable for tests.
	pythonCmd     []string
	typescriptCmd []string
}

// NewBridge creates a Bridge rooted at the project directory. Helpers are
// expected next to the working directory under helpers/.
func NewBridge(projectRoot string, timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{
		projectRoot:   projectRoot,
		timeout:       timeout,
		pythonCmd:     []string{"python3", filepath.Join("helpers", "py_helper.py")},
		typescriptCmd: []string{"node", filepath.Join("helpers", "ts_helper.js")},
	}
}

// References finds all reference sites for a symbol.
func (b *Bridge) References(ctx context.Context, symbol string, lang Language) ([]Location, error) {
	return b.lookup(ctx, "references", symbol, lang)
}

// Definition finds the definition site(s) for a symbol.
func (b *Bridge) Definition(ctx context.Context, symbol string, lang Language) ([]Location, error) {
	return b.lookup(ctx, "definition", symbol, lang)
}

func (b *Bridge) lookup(ctx context.Context, op, symbol string, lang Language) ([]Location, error) {
	var cmd []string
	switch lang {
	case LangPython:
		cmd = b.pythonCmd
	case LangTypeScript:
		cmd = b.typescriptCmd
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	out, err := b.run(ctx, cmd, op, symbol)
	if err != nil {
		return nil, err
	}

	var locations []Location
	if err := json.Unmarshal(out, &locations); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	// Helpers may emit absolute paths; normalize to project-relative where
	// possible.
	for i := range locations {
		if filepath.IsAbs(locations[i].FilePath) {
			if rel, relErr := filepath.Rel(b.projectRoot, locations[i].FilePath); relErr == nil {
				locations[i].FilePath = filepath.ToSlash(rel)
			}
		}
	}
	return locations, nil
}

// run executes one helper invocation under the bridge timeout and returns
// its stdout.
func (b *Bridge) run(ctx context.Context, cmdPrefix []string, op, symbol string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := append(append([]string{}, cmdPrefix[1:]...), op, b.projectRoot, symbol)
	cmd := exec.CommandContext(ctx, cmdPrefix[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrUnavailable, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
