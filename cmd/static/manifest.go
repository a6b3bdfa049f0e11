package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sagarc03/static"
	"github.com/sagarc03/static/filesystem"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest [flags] <dir>",
	Short: "Write an index.json manifest for a directory",
	Long: `Scan a directory and write an index.json listing its files, so that a
request for the directory returns them concatenated in one response.
Hidden files, .gz siblings and the manifest itself are never listed.
Entries are sorted by path.

Examples:
  # Combine every stylesheet under ./public/css
  static manifest --match '**/*.css' ./public/css

  # Print the manifest instead of writing it
  static manifest --output - ./public/js`,
	Args: cobra.ExactArgs(1),
	RunE: runManifest,
}

var (
	manifestMatch  []string
	manifestOutput string
)

func init() {
	manifestCmd.Flags().StringSliceVarP(&manifestMatch, "match", "m", nil, "only list files matching this glob, repeatable")
	manifestCmd.Flags().StringVarP(&manifestOutput, "output", "o", "", "output path, - for stdout (default: <dir>/"+static.ManifestFile+")")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]

	for _, pattern := range manifestMatch {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid pattern: %s", pattern)
		}
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer func() { _ = root.Close() }()

	manifest, size, err := buildManifest(ctx, filesystem.NewFileStorage(root), manifestMatch)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	data = append(data, '\n')

	if manifestOutput == "-" {
		return writeAll(cmd.OutOrStdout(), data)
	}

	output := manifestOutput
	if output == "" {
		output = filepath.Join(dir, static.ManifestFile)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	slog.Info("manifest written", "path", output, "files", len(manifest.Files), "size", humanize.Bytes(uint64(size)))
	return nil
}

// buildManifest lists the regular files of store that may be served and
// match one of patterns (all files when patterns is empty). It returns the
// manifest and the combined size of the listed files.
func buildManifest(ctx context.Context, store *filesystem.Store, patterns []string) (static.Manifest, int64, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return static.Manifest{}, 0, fmt.Errorf("scan directory: %w", err)
	}

	files := make([]string, 0, len(entries))
	sizes := make(map[string]int64, len(entries))
	for _, e := range entries {
		rel := filepath.ToSlash(e.Path)
		if rel == static.ManifestFile || strings.HasSuffix(rel, ".gz") || static.IsHiddenPath(rel) {
			continue
		}
		if !matchesAny(patterns, rel) {
			continue
		}
		files = append(files, rel)
		sizes[rel] = e.Size
	}
	sort.Strings(files)

	var total int64
	for _, f := range files {
		total += sizes[f]
	}

	return static.Manifest{Files: files}, total, nil
}

func matchesAny(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func writeAll(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
