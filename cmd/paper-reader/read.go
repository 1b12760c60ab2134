// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <arxiv-id>",
	Short: "Print a page of a paper's full text",
	Long: `Read returns one page of a paper's extracted text with its metadata.
The paper is served from the local cache when available; otherwise its PDF is
downloaded, validated, and converted first.

Identifiers may be bare ("2301.07041", "hep-th/9901001"), carry an "arXiv:"
prefix or a version suffix, or be arxiv.org abs/pdf URLs.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	page, _ := cmd.Flags().GetInt("page")
	maxChars, _ := cmd.Flags().GetInt("max-chars")
	if !cmd.Flags().Changed("max-chars") {
		maxChars = a.cfg.Read.DefaultMaxChars
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	out := cmd.OutOrStdout()
	if !jsonOutput {
		fmt.Fprintln(out, a.service.GetPaperContent(cmd.Context(), a.token, args[0], page, maxChars))
		return nil
	}

	if err := a.service.Authorize(a.token); err != nil {
		return err
	}
	content, err := a.service.GetContent(cmd.Context(), args[0], page, maxChars)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(content)
}

func init() {
	readCmd.Flags().Int("page", 1, "page number, starting at 1")
	readCmd.Flags().Int("max-chars", 20000, "characters per page (clamped to read.min_max_chars..read.max_max_chars)")
	readCmd.Flags().Bool("json", false, "output the page as JSON")

	rootCmd.AddCommand(readCmd)
}
