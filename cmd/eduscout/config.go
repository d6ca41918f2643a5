// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Config prints the configuration the pipeline would run with: baked-in
defaults overlaid with the config file. API keys from .secrets/ are
redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Providers.YouTubeAPIKey != "" {
			cfg.Providers.YouTubeAPIKey = "[redacted]"
		}
		if cfg.Providers.BraveAPIKey != "" {
			cfg.Providers.BraveAPIKey = "[redacted]"
		}
		if cfg.GenAI.APIKey != "" {
			cfg.GenAI.APIKey = "[redacted]"
		}
		if cfg.GenAI.FallbackAPIKey != "" {
			cfg.GenAI.FallbackAPIKey = "[redacted]"
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
