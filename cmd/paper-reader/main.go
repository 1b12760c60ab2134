// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-reader CLI: arXiv search,
// full-text retrieval with pagination, and management of the local paper
// cache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-reader/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the paper-reader CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-reader",
	Short: "Search arXiv and read papers as paginated text",
	Long: `paper-reader searches arXiv, downloads papers, extracts their text, and
serves it in pages sized for a reader's budget. Downloads and extracted text
are kept in a local cache bounded by age and total size.

Commands that return content (search, read) print descriptive text even when
the request fails, so agents can show the message as-is.`,
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./paper-reader.yaml or ~/.config/paper-reader/paper-reader.yaml)")
	pf.String("data-dir", "", "root directory for the paper cache")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.Bool("log-pretty", false, "human-readable log output")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")
	pf.String("token", "", "API token presented to the authorization check (env PAPER_READER_TOKEN)")

	_ = viper.BindPFlag("data_dir", pf.Lookup("data-dir"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.pretty", pf.Lookup("log-pretty"))
	_ = viper.BindPFlag("metrics_file", pf.Lookup("metrics-file"))
	_ = viper.BindPFlag("token", pf.Lookup("token"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-reader")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-reader"))
		}
	}

	setDefaults(viper.GetViper(), types.DefaultConfig())
	viper.SetEnvPrefix("PAPER_READER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so environment variables can
// override keys that appear in no config file.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("secrets_dir", d.SecretsDir)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("search.default_max_results", d.Search.DefaultMaxResults)
	v.SetDefault("search.max_results_cap", d.Search.MaxResultsCap)
	v.SetDefault("search.default_sort", d.Search.DefaultSort)
	v.SetDefault("fetch.max_attempts", d.Fetch.MaxAttempts)
	v.SetDefault("conversion.primary", string(d.Conversion.Primary))
	v.SetDefault("papers.max_size_mb", d.Papers.MaxSizeMB)
	v.SetDefault("papers.max_age_days", d.Papers.MaxAgeDays)
	v.SetDefault("read.default_max_chars", d.Read.DefaultMaxChars)
	v.SetDefault("read.min_max_chars", d.Read.MinMaxChars)
	v.SetDefault("read.max_max_chars", d.Read.MaxMaxChars)
	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// loadConfig decodes the merged defaults, config file, environment, and
// flags into a Config.
func loadConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	switch cfg.Conversion.Primary {
	case types.BackendMarkitdown, types.BackendPdftotext, types.BackendNone:
	default:
		return types.Config{}, fmt.Errorf("unknown conversion.primary %q: use markitdown, pdftotext, or none", cfg.Conversion.Primary)
	}
	if cfg.Papers.MaxSizeMB <= 0 {
		return types.Config{}, fmt.Errorf("papers.max_size_mb must be positive, got %d", cfg.Papers.MaxSizeMB)
	}
	if cfg.Papers.MaxAgeDays <= 0 {
		return types.Config{}, fmt.Errorf("papers.max_age_days must be positive, got %d", cfg.Papers.MaxAgeDays)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		closeApp()
		os.Exit(1)
	}
}
