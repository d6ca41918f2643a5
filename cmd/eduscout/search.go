// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/eduscout/internal/pipeline"
	"github.com/pdiddy/eduscout/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find and score educational videos for a country, grade, and subject",
	Long: `Search runs the full pipeline for one request: localized query
generation, concurrent provider fan-out through the result cache, hybrid
rule-plus-model scoring reconciled against the market knowledge store,
quality evaluation, and the anomaly-triggered optimization loop.

Results are ranked by score and the selected ones marked. A saturated
system answers busy immediately rather than queueing.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("country", "", "ISO 3166-1 alpha-2 country code (required)")
	searchCmd.Flags().String("grade", "", "grade label, e.g. \"Grade 1\" (required)")
	searchCmd.Flags().String("subject", "", "subject label, e.g. \"Mathematics\" (required)")
	searchCmd.Flags().String("semester", "", "optional semester label")
	searchCmd.Flags().String("resource-type", "", "optional resource type (video, playlist)")
	searchCmd.Flags().Bool("json", false, "output the response as JSON")
	searchCmd.Flags().Bool("selected-only", false, "print only selected results")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	country, _ := cmd.Flags().GetString("country")
	grade, _ := cmd.Flags().GetString("grade")
	subject, _ := cmd.Flags().GetString("subject")
	if country == "" || grade == "" || subject == "" {
		return fmt.Errorf("--country, --grade, and --subject are required")
	}
	semester, _ := cmd.Flags().GetString("semester")
	resourceType, _ := cmd.Flags().GetString("resource-type")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	engine, closeEngine, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine() //nolint:errcheck

	resp, err := engine.Search(ctx, types.SearchRequest{
		Country:      country,
		Grade:        grade,
		Subject:      subject,
		Semester:     semester,
		ResourceType: resourceType,
	})
	if err != nil {
		if pipeline.IsBusy(err) {
			return fmt.Errorf("system is busy, retry shortly: %w", err)
		}
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	selectedOnly, _ := cmd.Flags().GetBool("selected-only")
	return formatSearchOutput(resp, jsonOutput, selectedOnly)
}

func formatSearchOutput(resp types.Response, jsonOutput, selectedOnly bool) error {
	if selectedOnly {
		kept := resp.Results[:0]
		for _, r := range resp.Results {
			if r.Selected {
				kept = append(kept, r)
			}
		}
		resp.Results = kept
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
	if len(resp.Results) == 0 {
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-5s  %-6s  %-50s  %-12s  %s\n",
		"Rank", "Score", "Method", "Title", "Provider", "URL")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))
	for i, r := range resp.Results {
		title := r.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		marker := " "
		if r.Selected {
			marker = "*"
		}
		fmt.Fprintf(os.Stdout, "%-4d%s %5.1f  %-6s  %-50s  %-12s  %s\n",
			i+1, marker, r.Score, r.Method, title, r.SourceProvider, r.URL)
	}

	fmt.Printf("\nQuality: %.1f/100 (%s), %d results", resp.Quality.Overall, resp.Quality.Level, resp.Quality.ResultCount)
	if resp.OptimizationApplied {
		fmt.Print(", optimization applied")
	}
	if resp.Incomplete {
		fmt.Print(", INCOMPLETE")
	}
	fmt.Println()
	for _, a := range resp.Quality.Anomalies {
		fmt.Printf("  anomaly: %s\n", a)
	}
	return nil
}
