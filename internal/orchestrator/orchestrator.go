// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator fans a search out over the provider clients
// through the result cache, then merges and deduplicates the raw hits.
// Implements: prd004-search-orchestration (R1-R4);
//
//	docs/ARCHITECTURE § Search Orchestration.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/internal/cache"
	"github.com/pdiddy/eduscout/internal/provider"
	"github.com/pdiddy/eduscout/pkg/types"
)

// Merged is the outcome of one fan-out pass. Provider errors are carried
// as data, never raised: a failing provider degrades the set, it does not
// abort the request (R4.1).
type Merged struct {
	Results        []types.RawResult
	DupsRemoved    int
	CacheHits      int
	ProviderErrors []string
}

// Orchestrator coordinates providers, cache, and merging.
type Orchestrator struct {
	backends []provider.Backend
	store    cache.Store
	cfg      types.OrchestratorConfig
	logger   *zap.Logger
}

// New wires an orchestrator. Backends are sorted by priority once here;
// selection walks that order (R2.1).
func New(backends []provider.Backend, store cache.Store, cfg types.OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	sorted := make([]provider.Backend, len(backends))
	copy(sorted, backends)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })
	return &Orchestrator{backends: sorted, store: store, cfg: cfg, logger: logger}
}

// defaultProviderCount is how many highest-priority providers a default
// pass uses; a broadened strategy uses all of them.
const defaultProviderCount = 2

// selectBackends picks providers for a pass: the highest-priority clients
// with quota that serve the query language (R2.1, R2.2). Exhausted
// providers are skipped up front; mid-pass exhaustion degrades in the
// fan-out loop.
func (o *Orchestrator) selectBackends(langCode string, strategy types.Strategy) []provider.Backend {
	limit := defaultProviderCount
	if strategy.BroadenProviders {
		limit = len(o.backends)
	}

	var selected []provider.Backend
	for _, b := range o.backends {
		if len(selected) == limit {
			break
		}
		if b.Quota().Exhausted() {
			continue
		}
		if !servesLanguage(b, langCode) {
			continue
		}
		selected = append(selected, b)
	}

	// Everything exhausted: fall back to the full list and let per-call
	// errors degrade naturally rather than returning nothing untried.
	if len(selected) == 0 {
		selected = o.backends
	}
	return selected
}

func servesLanguage(b provider.Backend, langCode string) bool {
	langs := b.Languages()
	if len(langs) == 0 {
		return true
	}
	for _, l := range langs {
		if l == langCode {
			return true
		}
	}
	return false
}

// task is one (backend, query) fan-out unit.
type task struct {
	backend provider.Backend
	query   string
}

type taskResult struct {
	results  []types.RawResult
	err      error
	name     string
	cacheHit bool
}

// Execute fans the queries out over the selected providers concurrently,
// each call going through the cache, and returns the merged, deduplicated
// raw results (R1.1-R1.4). A slow or failing provider never blocks the
// others; whatever has arrived by context cancellation is returned.
func (o *Orchestrator) Execute(ctx context.Context, queries []string, langCode string, strategy types.Strategy) Merged {
	backends := o.selectBackends(langCode, strategy)
	if len(backends) == 0 || len(queries) == 0 {
		return Merged{}
	}

	var tasks []task
	for _, b := range backends {
		for _, q := range queries {
			tasks = append(tasks, task{backend: b, query: q})
		}
	}

	poolSize := o.cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	taskTimeout := o.cfg.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Second
	}

	ch := make(chan taskResult, len(tasks))
	sem := make(chan struct{}, poolSize)
	var wg sync.WaitGroup

	for _, tk := range tasks {
		wg.Add(1)
		go func(tk task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				ch <- taskResult{err: ctx.Err(), name: tk.backend.Name()}
				return
			}

			taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
			defer cancel()
			results, hit, err := o.searchThroughCache(taskCtx, tk)
			ch <- taskResult{results: results, err: err, name: tk.backend.Name(), cacheHit: hit}
		}(tk)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.RawResult
	var providerErrors []string
	cacheHits := 0

collect:
	for {
		select {
		case tr, ok := <-ch:
			if !ok {
				break collect
			}
			if tr.err != nil {
				msg := fmt.Sprintf("%s: %v", tr.name, tr.err)
				providerErrors = append(providerErrors, msg)
				o.logger.Warn("provider task failed",
					zap.String("provider", tr.name),
					zap.Error(tr.err))
				continue
			}
			if tr.cacheHit {
				cacheHits++
			}
			all = append(all, tr.results...)
		case <-ctx.Done():
			// Overall timeout: surface partial results (R1.4).
			break collect
		}
	}

	deduped, removed := dedupe(all)
	return Merged{
		Results:        deduped,
		DupsRemoved:    removed,
		CacheHits:      cacheHits,
		ProviderErrors: providerErrors,
	}
}

// searchThroughCache serves a task from the cache when possible; a miss
// calls the live client and populates the cache afterward (R1.2).
// Transient failures get one retry at this level; quota exhaustion does
// not (prd002 R2.1, prd004 R2.3).
func (o *Orchestrator) searchThroughCache(ctx context.Context, tk task) ([]types.RawResult, bool, error) {
	if payload, ok, err := o.store.Get(ctx, tk.query, tk.backend.Name()); err == nil && ok {
		return payload, true, nil
	} else if err != nil {
		o.logger.Warn("cache read failed, falling through to live call",
			zap.String("provider", tk.backend.Name()),
			zap.Error(err))
	}

	maxResults := o.cfg.MaxResultsPerProvider
	if maxResults <= 0 {
		maxResults = 10
	}

	results, err := tk.backend.Search(ctx, tk.query, maxResults)
	if err != nil && errors.Is(err, types.ErrProviderTransient) && ctx.Err() == nil {
		results, err = tk.backend.Search(ctx, tk.query, maxResults)
	}
	if err != nil {
		return nil, false, err
	}

	if err := o.store.Set(ctx, tk.query, tk.backend.Name(), results); err != nil {
		o.logger.Warn("cache write failed",
			zap.String("provider", tk.backend.Name()),
			zap.Error(err))
	}
	return results, false, nil
}

// dedupe drops results whose canonical URL was already seen. First-seen
// title and snippet win (R3.3). Output order is first-appearance order,
// which the scorer later replaces with its deterministic sort.
func dedupe(results []types.RawResult) ([]types.RawResult, int) {
	seen := make(map[string]bool, len(results))
	var deduped []types.RawResult
	removed := 0

	for _, r := range results {
		key := CanonicalURL(r.URL)
		if key == "" {
			continue
		}
		if seen[key] {
			removed++
			continue
		}
		seen[key] = true
		r.URL = key
		deduped = append(deduped, r)
	}
	return deduped, removed
}

// ProviderPriority exposes a backend's priority by name, for the
// scorer's deterministic tie-break (prd006 R5.2).
func (o *Orchestrator) ProviderPriority(name string) int {
	for _, b := range o.backends {
		if b.Name() == name {
			return b.Priority()
		}
	}
	return 1 << 30
}
