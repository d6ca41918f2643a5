// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider adapts external search services behind a uniform
// backend interface with quota accounting.
// Implements: prd002-provider-clients (R1-R5);
//
//	docs/ARCHITECTURE § Provider Clients.
package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/eduscout/pkg/types"
)

// Backend searches a single external provider. Each backend (YouTube,
// Brave, DuckDuckGo) implements this interface per the Strategy pattern.
// Implementations make at most one internal retry; everything else is the
// orchestrator's job (R2.3).
type Backend interface {
	Name() string

	// Search returns ordered raw results. Quota exhaustion is reported as
	// types.ErrQuotaExhausted, distinct from transient failures (R2.1).
	Search(ctx context.Context, query string, maxResults int) ([]types.RawResult, error)

	// Quota reports the remaining request budget for the current window.
	Quota() QuotaState

	// Priority orders backends for orchestrator selection; lower is
	// preferred (R3.1).
	Priority() int

	// Languages lists the language codes the backend serves well. Empty
	// means all languages (R3.2).
	Languages() []string
}

// QuotaState is a snapshot of a provider's remaining budget.
type QuotaState struct {
	// Remaining is the unit budget left in the current window.
	Remaining int

	// Limit is the budget at window start.
	Limit int

	// ResetsAt is when the window rolls over.
	ResetsAt time.Time
}

// Exhausted reports whether the provider has no budget left.
func (q QuotaState) Exhausted() bool { return q.Remaining <= 0 }

// quotaTracker counts units spent inside a rolling window. Daily windows
// reset at UTC midnight, monthly windows on the first of the month.
type quotaTracker struct {
	mu       sync.Mutex
	limit    int
	spent    int
	window   quotaWindow
	resetsAt time.Time
	now      func() time.Time
}

type quotaWindow int

const (
	windowDaily quotaWindow = iota
	windowMonthly
)

func newQuotaTracker(limit int, window quotaWindow) *quotaTracker {
	t := &quotaTracker{limit: limit, window: window, now: time.Now}
	t.resetsAt = nextReset(t.now().UTC(), window)
	return t
}

func nextReset(now time.Time, window quotaWindow) time.Time {
	switch window {
	case windowMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	default:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	}
}

// spend reserves units from the window. It returns false when the budget
// is insufficient; the caller maps that to types.ErrQuotaExhausted.
func (t *quotaTracker) spend(units int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if t.limit > 0 && t.spent+units > t.limit {
		return false
	}
	t.spent += units
	return true
}

// refund returns units after a failed call so quota is not charged for
// work the provider never did.
func (t *quotaTracker) refund(units int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent -= units
	if t.spent < 0 {
		t.spent = 0
	}
}

// exhaust empties the window, used when the provider itself reports
// quota exhaustion regardless of local accounting.
func (t *quotaTracker) exhaust() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent = t.limit
}

func (t *quotaTracker) state() QuotaState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return QuotaState{Remaining: t.limit - t.spent, Limit: t.limit, ResetsAt: t.resetsAt}
}

// rollover resets spent units when the window has passed. Callers hold mu.
func (t *quotaTracker) rollover() {
	now := t.now().UTC()
	if now.Before(t.resetsAt) {
		return
	}
	t.spent = 0
	t.resetsAt = nextReset(now, t.window)
}

// newPacer builds the per-client rate limiter (R5.3).
func newPacer(rps float64) *rate.Limiter {
	if rps <= 0 {
		rps = 1
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
