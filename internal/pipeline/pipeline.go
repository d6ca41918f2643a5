// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline is the produced interface of eduscout: it chains
// query generation, provider fan-out, scoring, quality evaluation and
// the optimization loop behind a single Search call, under global
// admission control and a per-request deadline. See
// docs/ARCHITECTURE § Pipeline and prd009-pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/internal/enrich"
	"github.com/pdiddy/eduscout/internal/optimize"
	"github.com/pdiddy/eduscout/internal/orchestrator"
	"github.com/pdiddy/eduscout/internal/query"
	"github.com/pdiddy/eduscout/pkg/types"
)

// QueryGenerator produces localized query strings for a request.
type QueryGenerator interface {
	Generate(ctx context.Context, req types.SearchRequest) []string
}

// Fanout executes one provider fan-out pass.
type Fanout interface {
	Execute(ctx context.Context, queries []string, langCode string, strategy types.Strategy) orchestrator.Merged
}

// ResultScorer scores merged raw results.
type ResultScorer interface {
	Score(ctx context.Context, req types.SearchRequest, strategy types.Strategy, raw []types.RawResult) ([]types.SearchResult, error)
}

// QualityEvaluator derives the quality report for a scored set.
type QualityEvaluator interface {
	Evaluate(results []types.SearchResult) types.QualityReport
}

// Optimizer runs the anomaly-triggered improvement loop.
type Optimizer interface {
	MaybeOptimize(ctx context.Context, req types.SearchRequest, results []types.SearchResult, report types.QualityReport) ([]types.SearchResult, types.QualityReport, bool)
}

// Deps are the stage implementations an Engine coordinates. Optimizer
// and Enricher may be nil: the engine then wires the default optimizer
// over its own pass, and the no-op enricher.
type Deps struct {
	Queries   QueryGenerator
	Fanout    Fanout
	Scorer    ResultScorer
	Quality   QualityEvaluator
	Optimizer Optimizer
	Enricher  enrich.Enricher
}

// Engine is the one entry point callers integrate against (R1.1).
type Engine struct {
	cfg       types.PipelineConfig
	queries   QueryGenerator
	fanout    Fanout
	scorer    ResultScorer
	quality   QualityEvaluator
	optimizer Optimizer
	enricher  enrich.Enricher
	gate      *gate
	logger    *zap.Logger
}

func New(cfg types.PipelineConfig, deps Deps, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		queries:  deps.Queries,
		fanout:   deps.Fanout,
		scorer:   deps.Scorer,
		quality:  deps.Quality,
		enricher: deps.Enricher,
		gate:     newGate(cfg.MaxConcurrentRequests, cfg.AdmissionWait),
		logger:   logger,
	}
	if e.enricher == nil {
		e.enricher = enrich.Noop{}
	}
	e.optimizer = deps.Optimizer
	if e.optimizer == nil && cfg.Optimization.Enabled {
		e.optimizer = optimize.New(cfg.Optimization, nil, e.pass, logger)
	}
	return e
}

// Search runs one full request: admission, default pass, optimization
// when the report is anomalous, and response assembly. Provider and
// per-result failures degrade the response; only admission rejection
// surfaces as an error (R2.1, R4.1).
func (e *Engine) Search(ctx context.Context, req types.SearchRequest) (types.Response, error) {
	release, err := e.gate.acquire(ctx)
	if err != nil {
		e.logger.Warn("request rejected at admission",
			zap.String("country", req.Country), zap.Error(err))
		return types.Response{}, err
	}
	defer release()

	timeout := e.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	results, report, err := e.pass(ctx, req, types.Strategy{})
	if err != nil && ctx.Err() == nil {
		return types.Response{}, fmt.Errorf("search pass: %w", err)
	}

	applied := false
	if e.optimizer != nil && ctx.Err() == nil {
		results, report, applied = e.optimizer.MaybeOptimize(ctx, req, results, report)
	}

	resp := types.Response{
		Results:             results,
		Quality:             report,
		OptimizationApplied: applied,
	}
	if ctx.Err() != nil {
		resp.Incomplete = true
		resp.Message = "request deadline reached; returning partial results"
	} else if len(results) == 0 {
		resp.Message = "no results found for this request across all providers"
	}

	e.logger.Info("search completed",
		zap.String("country", req.Country),
		zap.String("grade", req.Grade),
		zap.String("subject", req.Subject),
		zap.Int("results", len(results)),
		zap.Float64("overall", report.Overall),
		zap.Bool("optimized", applied),
		zap.Bool("incomplete", resp.Incomplete),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}

// pass runs one strategy pass end to end: queries, fan-out, enrichment,
// scoring, quality. It is also the optimizer's re-run hook.
func (e *Engine) pass(ctx context.Context, req types.SearchRequest, strategy types.Strategy) ([]types.SearchResult, types.QualityReport, error) {
	lang := query.LanguageFor(req.Country)

	queries := e.queries.Generate(ctx, req)
	if strategy.BoostLocalizedKeywords {
		queries = e.boostQueries(queries, lang)
	}

	merged := e.fanout.Execute(ctx, queries, lang.Code, strategy)
	if len(merged.ProviderErrors) > 0 {
		e.logger.Warn("providers degraded during fan-out",
			zap.Strings("errors", merged.ProviderErrors))
	}

	raw := e.enrichResults(ctx, merged.Results)

	scored, err := e.scorer.Score(ctx, req, strategy, raw)
	if err != nil {
		return nil, types.QualityReport{}, fmt.Errorf("scoring: %w", err)
	}
	return scored, e.quality.Evaluate(scored), nil
}

// boostQueries appends the market's localized course keyword to queries
// that lack it, for the localized-keywords optimization strategy.
func (e *Engine) boostQueries(queries []string, lang query.Language) []string {
	kw := e.cfg.Query.LocalizationKeywords[lang.Code]
	if kw == "" {
		kw = "full course"
	}
	boosted := make([]string, 0, len(queries))
	for _, q := range queries {
		if !containsFold(q, kw) {
			q = q + " " + kw
		}
		boosted = append(boosted, q)
	}
	return boosted
}

// enrichResults folds available enrichment signal into the raw results'
// snippets so the scorer sees it. Enrichment failure never degrades the
// result itself (prd006 R1.6).
func (e *Engine) enrichResults(ctx context.Context, raw []types.RawResult) []types.RawResult {
	if _, noop := e.enricher.(enrich.Noop); noop {
		return raw
	}
	for i, r := range raw {
		signal, err := e.enricher.Enrich(ctx, r.URL)
		if err != nil {
			e.logger.Debug("enrichment unavailable", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		if signal.Transcript != "" {
			raw[i].Snippet += " " + excerpt(signal.Transcript, 300)
		}
		if len(signal.Keyframes) > 0 {
			raw[i].Snippet += " " + strings.Join(signal.Keyframes, " ")
		}
		raw[i].Views = signal.Views
		raw[i].Likes = signal.Likes
	}
	return raw
}

func excerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// IsBusy reports whether an error is the admission gate's rejection, so
// callers can translate it into a retry hint.
func IsBusy(err error) bool { return errors.Is(err, types.ErrBusy) }
