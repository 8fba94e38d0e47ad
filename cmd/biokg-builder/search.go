// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/biokg-builder/internal/pubmed"
	"github.com/pdiddy/biokg-builder/internal/secrets"
	"github.com/pdiddy/biokg-builder/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search PubMed for articles matching a keyword",
	Long: `Search queries PubMed E-utilities for articles whose abstracts mention the
keyword and prints the results without running extraction. Useful for sizing
a run before committing to a full build.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum articles to fetch (default 200)")
	searchCmd.Flags().String("email", "", "contact email for NCBI E-utilities (or .secrets/pubmed-email)")
	searchCmd.Flags().String("ncbi-api-key", "", "NCBI API key for higher rate limits (or .secrets/ncbi-api-key)")
	searchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	email, _ := cmd.Flags().GetString("email")
	email = secretDefault(secrets.KeyPubMedEmail, email)
	if email == "" {
		return fmt.Errorf("contact email required by NCBI: pass --email or create .secrets/%s", secrets.KeyPubMedEmail)
	}
	ncbiKey, _ := cmd.Flags().GetString("ncbi-api-key")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	cfg := types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		Email:      email,
		APIKey:     secretDefault(secrets.KeyNCBIAPIKey, ncbiKey),
		MaxResults: maxResults,
	}

	client := pubmed.NewClient(cfg)

	articles, err := client.Search(cmd.Context(), args[0], os.Stderr)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(articles, jsonOutput)
}

func formatSearchOutput(articles []types.ArticleRecord, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(articles)
	}

	if len(articles) == 0 {
		fmt.Println("No articles found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-10s  %-60s  %-25s  %s\n", "PMID", "Title", "Journal", "Date")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))

	for _, a := range articles {
		title := a.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		journal := a.Journal
		if len(journal) > 25 {
			journal = journal[:22] + "..."
		}
		date := ""
		if !a.Date.IsZero() {
			date = a.Date.Format(time.DateOnly)
		}
		fmt.Fprintf(os.Stdout, "%-10s  %-60s  %-25s  %s\n", a.PMID, title, journal, date)
	}

	fmt.Fprintf(os.Stdout, "\n%d articles\n", len(articles))
	return nil
}
