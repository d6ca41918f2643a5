// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/eduscout/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the shared result cache",
	Long: `Cache operates on the Redis-backed result cache. Both subcommands
require cache.redis_addr to be configured: the in-memory cache lives and
dies with each search process and has nothing to inspect from here.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report the number of live cached provider responses",
	RunE:  runCacheStats,
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, err := openCacheStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Len(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d live entries\n", n)
	return nil
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached provider response",
	RunE:  runCacheClear,
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openCacheStore()
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Purge(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d entries\n", n)
	return nil
}

func openCacheStore() (*cache.RedisStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.RedisAddr == "" {
		return nil, errors.New("cache.redis_addr is not configured; the in-memory cache is per-process")
	}
	return cache.NewRedisStore(context.Background(), cfg.Cache)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
