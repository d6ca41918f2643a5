// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package optimize runs the anomaly-triggered improvement loop: generate
// alternative-strategy plans, pass them through approval, re-run the
// search pass with the approved strategy and keep whichever result set
// scores higher. See docs/ARCHITECTURE § Optimization and prd008.
package optimize

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/pkg/types"
)

// State names a phase of one optimization run, for logging and the
// pipeline's progress reporting.
type State string

const (
	StateIdle           State = "idle"
	StateIssuesDetected State = "issues_detected"
	StatePlansGenerated State = "plans_generated"
	StateExecuting      State = "executing"
	StateComparing      State = "comparing"
	StateDone           State = "done"
)

// Runner re-executes one full search pass (query generation through
// quality evaluation) under the given strategy. The pipeline provides
// it; tests provide fakes.
type Runner func(ctx context.Context, req types.SearchRequest, strategy types.Strategy) ([]types.SearchResult, types.QualityReport, error)

// Orchestrator drives the optimization loop for anomalous result sets.
type Orchestrator struct {
	cfg      types.OptimizationConfig
	approver Approver
	run      Runner
	logger   *zap.Logger
}

func New(cfg types.OptimizationConfig, approver Approver, run Runner, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if approver == nil {
		approver = NewAutoApprover(cfg)
	}
	if cfg.MaxPlans <= 0 {
		cfg.MaxPlans = 4
	}
	return &Orchestrator{cfg: cfg, approver: approver, run: run, logger: logger}
}

// MaybeOptimize inspects the report and, when anomalous, tries approved
// alternative strategies one at a time. It returns the best result set
// seen, its report, and whether an optimization pass replaced the
// original (R1.1, R5.2). The original set is never regressed from: a
// re-run that scores lower is discarded.
func (o *Orchestrator) MaybeOptimize(ctx context.Context, req types.SearchRequest, results []types.SearchResult, report types.QualityReport) ([]types.SearchResult, types.QualityReport, bool) {
	if !o.cfg.Enabled || !report.Anomalous() {
		return results, report, false
	}
	log := o.logger.With(zap.String("country", req.Country), zap.String("subject", req.Subject))
	log.Info("quality anomalies detected",
		zap.String("state", string(StateIssuesDetected)),
		zap.Any("anomalies", report.Anomalies),
		zap.Float64("overall", report.Overall))

	plans := o.Plans(report)
	log.Info("optimization plans generated",
		zap.String("state", string(StatePlansGenerated)), zap.Int("plans", len(plans)))

	bestResults, bestReport := results, report
	applied := false
	for _, plan := range plans {
		if ctx.Err() != nil {
			break
		}
		ok, err := o.approver.Approve(ctx, plan)
		if err != nil {
			log.Warn("plan approval failed", zap.String("plan", plan.ID), zap.Error(err))
			continue
		}
		if !ok {
			log.Info("plan rejected", zap.String("plan", plan.ID), zap.String("kind", string(plan.Kind)))
			continue
		}

		log.Info("executing optimization plan",
			zap.String("state", string(StateExecuting)),
			zap.String("plan", plan.ID), zap.String("kind", string(plan.Kind)))
		candResults, candReport, err := o.run(ctx, req, types.StrategyFor(plan.Kind))
		if err != nil {
			log.Warn("optimization pass failed", zap.String("plan", plan.ID), zap.Error(err))
			continue
		}

		log.Info("comparing optimization outcome",
			zap.String("state", string(StateComparing)),
			zap.Float64("before", bestReport.Overall), zap.Float64("after", candReport.Overall))
		if candReport.Overall > bestReport.Overall {
			bestResults, bestReport = candResults, candReport
			applied = true
		}
		if !bestReport.Anomalous() {
			break
		}
	}

	log.Info("optimization done",
		zap.String("state", string(StateDone)),
		zap.Bool("applied", applied), zap.Float64("overall", bestReport.Overall))
	return bestResults, bestReport, applied
}

// Plans derives candidate strategies from the report's anomalies,
// ordered most-promising first and capped at MaxPlans (R2.1-R2.3).
func (o *Orchestrator) Plans(report types.QualityReport) []types.OptimizationPlan {
	var plans []types.OptimizationPlan
	add := func(kind types.StrategyKind, desc string, improvement float64, risk types.RiskLevel) {
		plans = append(plans, types.OptimizationPlan{
			ID:                  uuid.NewString(),
			Kind:                kind,
			Description:         desc,
			ExpectedImprovement: improvement,
			Risk:                risk,
		})
	}

	has := func(a types.Anomaly) bool {
		for _, got := range report.Anomalies {
			if got == a {
				return true
			}
		}
		return false
	}

	if has(types.AnomalyLowAverage) || has(types.AnomalyLowQualityRatio) {
		add(types.StrategyLocalizedKeywords,
			"strengthen localized full-course vocabulary in generated queries",
			10, types.RiskLow)
	}
	if has(types.AnomalyFewResults) {
		add(types.StrategyBroaderProviders,
			fmt.Sprintf("widen the provider set (only %d results found)", report.ResultCount),
			15, types.RiskLow)
	}
	if has(types.AnomalyLowQualityRatio) || has(types.AnomalyHighVariance) {
		add(types.StrategyRelaxedTrust,
			"accept results from domains outside the trusted list",
			8, types.RiskMedium)
	}
	// The combined pass is the escalation when single adjustments are
	// unlikely to be enough.
	if len(report.Anomalies) >= 2 {
		add(types.StrategyCombined,
			"apply localized keywords, broader providers and relaxed trust together",
			20, types.RiskHigh)
	}
	if len(plans) == 0 {
		// Anomalous report with no matching rule above still gets the
		// safest plan rather than none.
		add(types.StrategyLocalizedKeywords,
			"strengthen localized full-course vocabulary in generated queries",
			10, types.RiskLow)
	}
	if len(plans) > o.cfg.MaxPlans {
		plans = plans[:o.cfg.MaxPlans]
	}
	return plans
}
