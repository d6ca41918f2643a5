// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the eduscout CLI.
// Implements: prd009-pipeline (CLI surface), prd005-market-knowledge
// (knowledge subcommands). See docs/ARCHITECTURE § Pipeline Interface,
// § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/eduscout/internal/logging"
	"github.com/pdiddy/eduscout/internal/secrets"
	"github.com/pdiddy/eduscout/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if non-empty, else the secret value
// for key if one was loaded.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the eduscout CLI.
var rootCmd = &cobra.Command{
	Use:   "eduscout",
	Short: "Localized search and scoring for educational video resources",
	Long: `eduscout finds, scores, and ranks educational video resources for a
country, grade, and subject. It generates localized queries, fans them
out over search providers with quota-aware fallback, scores the merged
results with rules plus a generative model reconciled against per-market
knowledge, and re-runs with adjusted strategies when quality is poor.

Each surface is a subcommand: search runs the full pipeline, knowledge
inspects and exports the per-market knowledge store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./eduscout.yaml or ~/.config/eduscout/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override log level (debug, info, warn, error)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("eduscout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "eduscout"))
		}
	}

	viper.SetEnvPrefix("EDUSCOUT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// defaultConfig is the complete baseline configuration; the config file
// overrides it field by field, secrets fill the API keys.
func defaultConfig() types.PipelineConfig {
	return types.PipelineConfig{
		Query: types.QueryConfig{
			MaxQueries: 3,
			LocalizationKeywords: map[string]string{
				"id": "kursus lengkap",
				"ms": "kursus penuh",
				"vi": "khóa học đầy đủ",
				"th": "คอร์สเต็ม",
				"pt": "curso completo",
				"es": "curso completo",
				"tr": "tam kurs",
				"en": "full course",
			},
		},
		GenAI: types.GenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			CallTimeout: 20 * time.Second,
		},
		Providers: types.ProviderConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "eduscout/0.1",
			},
			EnableYouTube:     true,
			EnableBrave:       true,
			EnableDuckDuckGo:  true,
			YouTubeDailyQuota: 10000,
			BraveMonthlyQuota: 2000,
			RequestsPerSecond: 1,
		},
		Cache: types.CacheConfig{
			TTL:        time.Hour,
			MaxEntries: 1024,
		},
		Orchestrator: types.OrchestratorConfig{
			MaxResultsPerProvider: 10,
			WorkerPoolSize:        4,
			TaskTimeout:           30 * time.Second,
		},
		Knowledge: types.KnowledgeConfig{
			Dir:                 "data/knowledge",
			InitialConfidence:   0.3,
			ValidatedConfidence: 0.6,
		},
		Scoring: types.ScoringConfig{
			TrustedDomains: []string{
				"youtube.com", "khanacademy.org", "ruangguru.com",
				"zenius.net", "byjus.com", "vedantu.com",
			},
			LLMConcurrency:    5,
			RuleTerminalScore: 8.0,
			SelectionFloor:    6.0,
		},
		Quality: types.QualityConfig{
			AvgWeight:         0.5,
			RatioWeight:       0.3,
			MedianWeight:      0.2,
			HighQualityFloor:  7.0,
			AvgScoreFloor:     5.0,
			MinResults:        3,
			QualityRatioFloor: 0.3,
			VarianceCeiling:   8.0,
		},
		Optimization: types.OptimizationConfig{
			Enabled:                true,
			AutoApproveRisk:        types.RiskMedium,
			AutoApproveImprovement: 5.0,
			MaxPlans:               4,
		},
		MaxConcurrentRequests: 8,
		AdmissionWait:         2 * time.Second,
		RequestTimeout:        2 * time.Minute,
	}
}

// loadConfig builds the effective pipeline configuration: defaults,
// then the YAML config file, then secrets for any key still empty.
func loadConfig() (types.PipelineConfig, error) {
	cfg := defaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.Providers.YouTubeAPIKey = secretDefault("youtube-api-key", cfg.Providers.YouTubeAPIKey)
	cfg.Providers.BraveAPIKey = secretDefault("brave-api-key", cfg.Providers.BraveAPIKey)
	cfg.GenAI.APIKey = secretDefault("openai-api-key", cfg.GenAI.APIKey)
	cfg.GenAI.FallbackAPIKey = secretDefault("fallback-genai-api-key", cfg.GenAI.FallbackAPIKey)
	return cfg, nil
}

// newLogger builds the process logger from EDUSCOUT_ENV and the
// --log-level override.
func newLogger() (*zap.Logger, error) {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	env := os.Getenv("EDUSCOUT_ENV")
	if level != "" {
		return logging.New(env, level)
	}
	return logging.New(env)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
