package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sagarc03/static"
	"github.com/sagarc03/static/config"
	"github.com/sagarc03/static/filesystem"
	statichttp "github.com/sagarc03/static/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve [root]",
	Short: "Start the HTTP server",
	Long: `Serve the files under root (default: the current directory) over HTTP.

Examples:
  # Serve ./public on port 8080
  static serve ./public

  # Single page application with long-lived asset caching
  static serve --spa --cache '{"/assets/**": 31536000, "**": 0}' ./dist

  # Serve pre-compressed siblings of text assets
  static serve --gzip --gzip-content-type '^(text/|application/javascript)' ./public`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.Int("port", 8080, "HTTP server port (env: STATIC_SERVER_PORT)")
	flags.String("host", "", "interface to listen on (env: STATIC_SERVER_HOST)")
	flags.String("mode", "static", "server mode: static, spa (env: STATIC_SERVER_MODE)")
	flags.Bool("spa", false, "serve the index file for paths that do not exist (same as --mode spa)")
	flags.String("cache", "", "Cache-Control max-age: true, false, seconds, or a JSON object of glob to seconds (env: STATIC_CACHE)")
	flags.String("index-file", static.DefaultIndexFile, "file served for directory requests")
	flags.String("default-extension", "", "extension tried when a path does not exist, e.g. html")
	flags.Bool("serve-hidden", false, "serve files and directories whose names start with a dot")
	flags.String("server-info", "", "value of the Server header (default: static/<version>)")
	flags.Bool("suppress-identity", false, "do not send a Server header")
	flags.String("headers", "", "additional response headers as a JSON object")
	flags.String("header-file", "", "JSON or YAML file of additional response headers")
	flags.Bool("gzip", false, "serve <file>.gz to clients that accept gzip")
	flags.String("gzip-content-type", "", "only serve .gz siblings for content types matching this regexp")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Files.Root = args[0]
	}

	info, err := os.Stat(cfg.Files.Root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root is not a directory: %s", cfg.Files.Root)
	}

	root, err := os.OpenRoot(cfg.Files.Root)
	if err != nil {
		return fmt.Errorf("open root: %w", err)
	}
	defer func() { _ = root.Close() }()

	storage := filesystem.NewFileStorage(root)

	logger := slog.Default()
	opts, err := cfg.Options(logger)
	if err != nil {
		return fmt.Errorf("build options: %w", err)
	}

	fileServer, err := static.NewServer(storage, opts)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	logSummary(ctx, storage, fileServer.Root())

	handler := statichttp.NewHandler(cfg.HandlerConfig(logger), fileServer)

	addr := cfg.Addr()
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server",
		"addr", addr,
		"root", fileServer.Root(),
		"mode", cfg.Server.Mode,
		"gzip", cfg.Gzip.Enabled,
		"cache_disabled", cfg.Cache.Disabled,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// logSummary reports how much is being served. A failure only costs the log
// line.
func logSummary(ctx context.Context, storage *filesystem.Store, root string) {
	entries, err := storage.List(ctx)
	if err != nil {
		slog.Warn("could not scan root", "root", root, "err", err)
		return
	}

	var total int64
	for _, e := range entries {
		total += e.Size
	}
	slog.Info("serving files", "root", root, "files", len(entries), "size", humanize.Bytes(uint64(total)))
}
