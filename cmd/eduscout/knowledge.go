// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/eduscout/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Inspect and export the per-market knowledge store",
	Long: `Knowledge manages the per-country store of validated local-language
grade and subject expressions and recorded scoring mistakes. The store
grows as searches run; use subcommands to list markets, show one
market's record, or export everything to YAML.`,
}

// --- markets subcommand ---

var knowledgeMarketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List every country with a knowledge record",
	RunE:  runKnowledgeMarkets,
}

func runKnowledgeMarkets(cmd *cobra.Command, args []string) error {
	store, err := openKnowledgeStore()
	if err != nil {
		return err
	}
	defer store.Close()

	countries, err := store.Countries(context.Background())
	if err != nil {
		return err
	}
	if len(countries) == 0 {
		fmt.Println("No markets recorded yet.")
		return nil
	}
	for _, c := range countries {
		fmt.Println(c)
	}
	return nil
}

// --- show subcommand ---

var knowledgeShowCmd = &cobra.Command{
	Use:   "show [country]",
	Short: "Print one market's knowledge record",
	Long: `Show prints the grade and subject expression variants recorded for a
country, with per-variant confidence and observation counts, plus the
append-only mistake log.`,
	Args: cobra.ExactArgs(1),
	RunE: runKnowledgeShow,
}

func runKnowledgeShow(cmd *cobra.Command, args []string) error {
	store, err := openKnowledgeStore()
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.Record(context.Background(), args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	data, err := yaml.Marshal(record)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every market's record to YAML",
	RunE:  runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	store, err := openKnowledgeStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ExportYAML(context.Background()); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Println("Exported to", filepath.Join(cfg.Knowledge.Dir, "export.yaml"))
	return nil
}

func openKnowledgeStore() (*knowledge.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return knowledge.NewStore(cfg.Knowledge)
}

func init() {
	knowledgeShowCmd.Flags().Bool("json", false, "output the record as JSON")

	knowledgeCmd.AddCommand(knowledgeMarketsCmd)
	knowledgeCmd.AddCommand(knowledgeShowCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
