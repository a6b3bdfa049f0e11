package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagarc03/static"
	"github.com/sagarc03/static/config"
)

var version = static.Version

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "static",
	Short:   "Static file server with caching, ranges and pre-compressed files",
	Long: `static serves the files of a directory over HTTP with conditional GET,
byte ranges, glob-based Cache-Control rules, pre-compressed .gz siblings
and index.json manifests that combine several files into one response.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Env, cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file path, repeatable; later files override earlier ones (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: STATIC_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
