package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/loft"
)

var (
	verbose    bool
	configPath string
	adapter    string
	dataPath   string
	readOnly   bool
	jsonOut    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loft",
	Short: "A local-first record cache for study labs, meals and weather",
	Long: `loft keeps study subjects, labs and favorite meals in a local table store
and fetches recipes and weather from their public APIs.
Every view re-loads when the records it reads change.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to loft.yaml (default: nearest loft.yaml upwards)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter: memory, sqlite or postgres")
	rootCmd.PersistentFlags().StringVar(&dataPath, "path", "", "SQLite database file")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "Reject every write")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

// loadConfig resolves the configuration file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*loft.Config, error) {
	path := configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = loft.FindConfig(wd)
		}
	}
	cfg, err := loft.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("adapter") {
		cfg.Storage.Adapter = adapter
	}
	if flags.Changed("path") {
		cfg.Storage.Path = dataPath
	}
	if flags.Changed("read-only") {
		cfg.Storage.ReadOnly = readOnly
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp builds the App for one command. One-shot commands do not watch
// for foreign commits.
func openApp(ctx context.Context, cmd *cobra.Command, cfg *loft.Config, extra ...loft.Option) (*loft.App, error) {
	if cfg == nil {
		var err error
		if cfg, err = loadConfig(cmd); err != nil {
			return nil, err
		}
	}
	opts := append(cfg.Options(), loft.WithLogger(slog.Default()), loft.WithWatch(false))
	opts = append(opts, extra...)
	app, err := loft.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loft: %w", err)
	}
	return app, nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
