package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dmarsh/racode/internal/config"
	"github.com/dmarsh/racode/internal/indexer"
	"github.com/dmarsh/racode/internal/lsp"
	"github.com/dmarsh/racode/internal/mcp"
	"github.com/dmarsh/racode/internal/storage"
)

var version = "dev"

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Default()
	if configPath := cmd.String("config"); configPath != "" {
		if err := config.Load(configPath, &cfg); err != nil {
			return err
		}
	}

	// Flags win over the config file.
	if v := cmd.String("project-root"); v != "" {
		cfg.ProjectRoot = v
	}
	if v := cmd.String("db-path"); v != "" {
		cfg.DBPath = v
	}
	if cmd.Bool("watch") {
		cfg.Watch = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("project root %s is not a directory", root)
	}

	// stdout carries the MCP protocol; everything else goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	logger.Info("starting",
		slog.String("version", version),
		slog.String("driver", storage.DriverName),
		slog.String("build_mode", storage.BuildMode),
		slog.String("root", root))

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open index database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ix := indexer.New(root, store, logger)
	bridge := lsp.NewBridge(root, cfg.LSPTimeout())
	srv := mcp.NewServer(store, ix, bridge, logger, cfg.ContextLines)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initial pass so the first search starts from a warm index. Per-file
	// problems are already reported inside Reconcile.
	if _, err := ix.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial index pass: %w", err)
	}

	if cfg.Watch {
		go func() {
			if err := ix.Watch(ctx); err != nil {
				logger.Error("watcher exited", slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mcp server ready, listening on stdio")
		errCh <- srv.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "racode",
		Usage:   "Incremental code-search MCP server with SQLite full-text indexing",
		Version: version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "project-root",
				Aliases: []string{"r"},
				Usage:   "Directory tree to index and search",
				Sources: cli.EnvVars("RACODE_PROJECT_ROOT"),
			},
			&cli.StringFlag{
				Name:    "db-path",
				Usage:   "SQLite index database file",
				Sources: cli.EnvVars("RACODE_DB_PATH"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Sources: cli.EnvVars("RACODE_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "watch",
				Usage:   "Re-index automatically when files change",
				Sources: cli.EnvVars("RACODE_WATCH"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
