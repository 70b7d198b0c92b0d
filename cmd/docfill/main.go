package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/docfill/docfill/internal/batch"
	"github.com/docfill/docfill/internal/catalog"
	"github.com/docfill/docfill/internal/config"
	"github.com/docfill/docfill/internal/fill"
	"github.com/docfill/docfill/internal/mcp"
	"github.com/docfill/docfill/internal/pdf"
	"github.com/docfill/docfill/internal/server"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the root logger. In stdio mode log output goes to
// stderr so it cannot interfere with the MCP protocol on stdout; without
// debug it is discarded entirely.
func setupLogging(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.IsStdioMode() {
		out = os.Stderr
		if !cfg.IsDebug() {
			out = io.Discard
		}
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// runServerMode runs the HTTP server until a termination signal arrives.
func runServerMode(ctx context.Context, cancel context.CancelFunc, srv *server.Server, logger *slog.Logger) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		if err := <-serverErrCh; err != nil {
			logger.Error("server shutdown with error", "error", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}

// runStdioMode serves MCP tools over stdio; the parent process controls the
// lifecycle.
func runStdioMode(ctx context.Context, srv *mcp.Server, logger *slog.Logger) {
	if err := srv.Run(ctx); err != nil {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		logger.Debug("starting", "config", cfg.String())
	}

	cat, err := catalog.Load(cfg.PatternsFile, cfg.MappingFile)
	if err != nil {
		logger.Error("failed to load field catalog", "error", err)
		os.Exit(1)
	}

	engine := pdf.NewEngine()
	filler := fill.New(engine, cat)
	orch := batch.New(filler, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		srv := server.New(cfg, cat, orch, logger)
		runServerMode(ctx, cancel, srv, logger)
		return
	}

	mcpServer, err := mcp.NewServer(cfg, engine, filler, orch)
	if err != nil {
		logger.Error("failed to create MCP server", "error", err)
		os.Exit(1)
	}
	runStdioMode(ctx, mcpServer, logger)
}

func printVersion() {
	fmt.Printf("docfill\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
