// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/internal/cache"
	"github.com/pdiddy/eduscout/internal/genai"
	"github.com/pdiddy/eduscout/internal/knowledge"
	"github.com/pdiddy/eduscout/internal/orchestrator"
	"github.com/pdiddy/eduscout/internal/provider"
	"github.com/pdiddy/eduscout/internal/quality"
	"github.com/pdiddy/eduscout/internal/query"
	"github.com/pdiddy/eduscout/internal/scorer"
	"github.com/pdiddy/eduscout/pkg/types"
)

// Build assembles a production Engine from configuration: provider
// clients per the enable flags, the configured cache store, the genai
// chain, the SQLite knowledge store, and the stages on top. The
// returned close func releases the stores; it is safe to call once the
// engine is idle.
func Build(ctx context.Context, cfg types.PipelineConfig, logger *zap.Logger) (*Engine, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpTimeout := cfg.Providers.Timeout
	if httpTimeout <= 0 {
		httpTimeout = 15 * time.Second
	}
	client := &http.Client{Timeout: httpTimeout}

	var backends []provider.Backend
	if cfg.Providers.EnableYouTube {
		backends = append(backends, provider.NewYouTubeBackend(client, cfg.Providers))
	}
	if cfg.Providers.EnableBrave {
		backends = append(backends, provider.NewBraveBackend(client, cfg.Providers))
	}
	if cfg.Providers.EnableDuckDuckGo {
		backends = append(backends, provider.NewDuckDuckGoBackend(client, cfg.Providers))
	}
	if len(backends) == 0 {
		return nil, nil, fmt.Errorf("no search providers enabled")
	}

	var store cache.Store
	var closeStore func() error
	if cfg.Cache.RedisAddr != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.Cache)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting result cache: %w", err)
		}
		store = rs
		closeStore = rs.Close
	} else {
		store = cache.NewMemoryStore(cfg.Cache)
		closeStore = func() error { return nil }
	}

	chain := buildChain(cfg, logger)

	kb, err := knowledge.NewStore(cfg.Knowledge)
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("opening knowledge store: %w", err)
	}

	orch := orchestrator.New(backends, store, cfg.Orchestrator, logger)
	deps := Deps{
		Queries: query.NewGenerator(chain, cfg.Query, cfg.GenAI, logger),
		Fanout:  orch,
		Scorer:  scorer.New(chain, kb, cfg.Scoring, orch.ProviderPriority, logger),
		Quality: quality.NewEvaluator(cfg.Quality),
	}
	engine := New(cfg, deps, logger)

	closer := func() error {
		cerr := closeStore()
		if kerr := kb.Close(); kerr != nil {
			return kerr
		}
		return cerr
	}
	return engine, closer, nil
}

// buildChain assembles the generative backend chain: the primary OpenAI
// backend when an API key is configured, then the OpenAI-compatible
// fallback endpoint when one is configured. A nil chain disables the
// generative paths; query generation and scoring degrade to their
// deterministic routes.
func buildChain(cfg types.PipelineConfig, logger *zap.Logger) query.Completer {
	var backends []genai.Backend
	if cfg.GenAI.APIKey != "" {
		backends = append(backends, genai.NewOpenAIBackend(genai.OpenAIConfig{
			Name:   "openai",
			APIKey: cfg.GenAI.APIKey,
			Model:  cfg.GenAI.Model,
		}))
	}
	if cfg.GenAI.FallbackBaseURL != "" {
		backends = append(backends, genai.NewOpenAIBackend(genai.OpenAIConfig{
			Name:    "fallback",
			APIKey:  cfg.GenAI.FallbackAPIKey,
			BaseURL: cfg.GenAI.FallbackBaseURL,
			Model:   cfg.GenAI.FallbackModel,
		}))
	}
	if len(backends) == 0 {
		return nil
	}
	return genai.NewChain(logger, backends...)
}
