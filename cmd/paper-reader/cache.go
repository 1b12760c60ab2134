// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-reader/internal/acquire"
	"github.com/pdiddy/paper-reader/internal/search"
	"github.com/pdiddy/paper-reader/pkg/types"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local paper cache",
	Long: `Cache manages the SQLite-backed paper cache. Records older than
papers.max_age_days are evicted, and the largest records are evicted while the
cached artifacts exceed papers.max_size_mb. Eviction also runs after every
write; the cleanup subcommand runs it on demand.`,
}

// --- stats subcommand ---

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record count, total size, and limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		st, err := a.store.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		fmt.Fprintf(out, "Papers:     %d\n", st.Count)
		fmt.Fprintf(out, "Total size: %s of %s\n", humanBytes(st.TotalBytes), humanBytes(st.MaxBytes))
		fmt.Fprintf(out, "Max age:    %d days\n", st.MaxAgeDays)
		return nil
	},
}

// --- list subcommand ---

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached papers, most recently read first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		papers, err := a.store.List(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			return yaml.NewEncoder(out).Encode(papers)
		}
		if len(papers) == 0 {
			fmt.Fprintln(out, "Cache is empty.")
			return nil
		}

		fmt.Fprintf(out, "%-20s  %-40s  %-10s  %-9s  %s\n", "ID", "Title", "Size", "Files", "Last read")
		fmt.Fprintln(out, strings.Repeat("-", 100))
		for _, p := range papers {
			fmt.Fprintf(out, "%-20s  %-40s  %-10s  %-9s  %s\n",
				p.ID, search.Truncate(p.Title, 37), humanBytes(p.SizeBytes), artifactLabel(p),
				p.LastAccessedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(out, "\n%d papers\n", len(papers))
		return nil
	},
}

// artifactLabel names the files recorded for p.
func artifactLabel(p types.PaperRecord) string {
	switch {
	case p.MetadataOnly():
		return "none"
	case p.HasText() && p.SourcePath != "":
		return "pdf+text"
	case p.HasText():
		return "text"
	default:
		return "pdf"
	}
}

// --- delete subcommand ---

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <arxiv-id...>",
	Short: "Remove papers and their files from the cache",
	Long: `Delete removes each named paper's record, PDF, and extracted text.
A paper that another invocation is currently retrieving is left alone and
reported as an error.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		for _, raw := range args {
			id, err := acquire.Normalize(raw)
			if err != nil {
				return err
			}
			if err := a.store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

// --- clear subcommand ---

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached paper and file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear the cache without --yes")
		}
		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		skipped, err := a.store.ClearAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
		for _, id := range skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "Kept %s (retrieval in progress)\n", id)
		}
		return nil
	},
}

// --- cleanup subcommand ---

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run the age and size eviction sweep now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		ev, err := a.store.Cleanup(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, id := range ev.Age {
			fmt.Fprintf(out, "  expired    %s\n", id)
		}
		for _, id := range ev.Size {
			fmt.Fprintf(out, "  oversize   %s\n", id)
		}
		fmt.Fprintf(out, "Evicted %d papers (%d by age, %d by size)\n", ev.Total(), len(ev.Age), len(ev.Size))
		return nil
	},
}

// --- export subcommand ---

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cache records and stats to YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		path, _ := cmd.Flags().GetString("out")

		a, err := openStore(cmd)
		if err != nil {
			return err
		}
		if path == "" {
			path = filepath.Join(a.cfg.PapersDir(), "export."+format)
		}

		switch format {
		case "yaml":
			err = a.store.ExportYAML(cmd.Context(), path)
		case "json":
			err = a.store.ExportJSON(cmd.Context(), path)
		default:
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
		return nil
	},
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	cacheStatsCmd.Flags().Bool("json", false, "output stats as JSON")
	cacheListCmd.Flags().Bool("yaml", false, "output records as YAML")
	cacheClearCmd.Flags().Bool("yes", false, "confirm removal of every cached paper")
	cacheExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	cacheExportCmd.Flags().String("out", "", "output path (default <data_dir>/papers/export.<format>)")

	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheDeleteCmd, cacheClearCmd, cacheCleanupCmd, cacheExportCmd)
	rootCmd.AddCommand(cacheCmd)
}
