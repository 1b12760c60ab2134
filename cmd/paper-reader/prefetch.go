// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch [arxiv-id...]",
	Short: "Download and extract papers into the cache ahead of reading",
	Long: `Prefetch warms the cache for a list of papers, running several retrievals
at once. Identifiers come from arguments, from --file (one per line, '#'
comments allowed), or both. A failure for one paper does not stop the rest.`,
	RunE: runPrefetch,
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	file, _ := cmd.Flags().GetString("file")
	parallel, _ := cmd.Flags().GetInt("parallel")

	ids := append([]string(nil), args...)
	if file != "" {
		fromFile, err := readIDFile(file)
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no identifiers given: pass arXiv IDs as arguments or use --file")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	if err := a.service.Authorize(a.token); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range a.service.Prefetch(cmd.Context(), ids, parallel) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "  FAIL  %-20s %v\n", r.ID, r.Err)
			continue
		}
		fmt.Fprintf(out, "  ok    %-20s %s, %d chars\n", r.ID, r.Source.Label(), r.Chars)
	}
	fmt.Fprintf(out, "\nPrefetched %d/%d papers\n", len(ids)-failed, len(ids))

	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed", failed)
	}
	return nil
}

func readIDFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening id file: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading id file: %w", err)
	}
	return ids, nil
}

func init() {
	prefetchCmd.Flags().String("file", "", "read identifiers from this file, one per line")
	prefetchCmd.Flags().Int("parallel", 4, "maximum concurrent retrievals")

	rootCmd.AddCommand(prefetchCmd)
}
