// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package optimize

import (
	"context"

	"github.com/pdiddy/eduscout/pkg/types"
)

// Approver decides whether an optimization plan may execute (R3.1).
type Approver interface {
	Approve(ctx context.Context, plan types.OptimizationPlan) (bool, error)
}

// AutoApprover approves plans by policy: risk at or below the configured
// ceiling and expected improvement at or above the configured minimum.
type AutoApprover struct {
	maxRisk        types.RiskLevel
	minImprovement float64
}

func NewAutoApprover(cfg types.OptimizationConfig) *AutoApprover {
	maxRisk := cfg.AutoApproveRisk
	if maxRisk == "" {
		maxRisk = types.RiskLow
	}
	minImprovement := cfg.AutoApproveImprovement
	if minImprovement <= 0 {
		minImprovement = 5.0
	}
	return &AutoApprover{maxRisk: maxRisk, minImprovement: minImprovement}
}

func (a *AutoApprover) Approve(_ context.Context, plan types.OptimizationPlan) (bool, error) {
	return riskRank(plan.Risk) <= riskRank(a.maxRisk) && plan.ExpectedImprovement >= a.minImprovement, nil
}

func riskRank(r types.RiskLevel) int {
	switch r {
	case types.RiskLow:
		return 0
	case types.RiskMedium:
		return 1
	case types.RiskHigh:
		return 2
	default:
		return 3
	}
}

// Decision is one external verdict for a pending plan.
type Decision struct {
	PlanID   string
	Approved bool
}

// ChannelApprover blocks until an external decision arrives for the
// plan, or the context expires. It backs interactive approval fronts
// (CLI prompt, ops channel); the pipeline treats context expiry as a
// rejection upstream via the returned error.
type ChannelApprover struct {
	// Pending receives plans awaiting a decision.
	Pending chan<- types.OptimizationPlan
	// Decisions delivers verdicts; a verdict for a different plan ID is
	// discarded.
	Decisions <-chan Decision
}

func NewChannelApprover(pending chan<- types.OptimizationPlan, decisions <-chan Decision) *ChannelApprover {
	return &ChannelApprover{Pending: pending, Decisions: decisions}
}

func (c *ChannelApprover) Approve(ctx context.Context, plan types.OptimizationPlan) (bool, error) {
	select {
	case c.Pending <- plan:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	for {
		select {
		case d := <-c.Decisions:
			if d.PlanID != plan.ID {
				continue
			}
			return d.Approved, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
