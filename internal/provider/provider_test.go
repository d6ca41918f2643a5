// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"testing"
	"time"

	"github.com/pdiddy/eduscout/internal/httputil"
)

func init() {
	// Keep the single internal retry fast in tests.
	httputil.RetryDelay = time.Millisecond
}

func TestQuotaTrackerSpendAndState(t *testing.T) {
	q := newQuotaTracker(300, windowDaily)

	if !q.spend(100) {
		t.Fatal("first spend should succeed")
	}
	if got := q.state().Remaining; got != 200 {
		t.Errorf("Remaining = %d, want 200", got)
	}
	if !q.spend(200) {
		t.Fatal("second spend should succeed")
	}
	if q.spend(1) {
		t.Error("spend beyond the limit should fail")
	}
	if !q.state().Exhausted() {
		t.Error("state should report exhausted")
	}
}

func TestQuotaTrackerRefund(t *testing.T) {
	q := newQuotaTracker(100, windowDaily)
	q.spend(100)
	q.refund(100)
	if got := q.state().Remaining; got != 100 {
		t.Errorf("Remaining = %d after refund, want 100", got)
	}
	// Refund never goes below zero spent.
	q.refund(50)
	if got := q.state().Remaining; got != 100 {
		t.Errorf("Remaining = %d after over-refund, want 100", got)
	}
}

func TestQuotaTrackerExhaust(t *testing.T) {
	q := newQuotaTracker(1000, windowMonthly)
	q.exhaust()
	if !q.state().Exhausted() {
		t.Error("exhaust should empty the window")
	}
}

func TestQuotaTrackerDailyRollover(t *testing.T) {
	q := newQuotaTracker(100, windowDaily)
	base := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return base }
	q.resetsAt = nextReset(base, windowDaily)

	q.spend(100)
	if q.spend(1) {
		t.Fatal("spend should fail before rollover")
	}

	// Advance past UTC midnight.
	q.now = func() time.Time { return base.Add(2 * time.Hour) }
	if !q.spend(1) {
		t.Error("spend should succeed after daily rollover")
	}
	if got := q.state().Remaining; got != 99 {
		t.Errorf("Remaining = %d after rollover spend, want 99", got)
	}
}

func TestQuotaTrackerMonthlyReset(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := nextReset(base, windowMonthly)
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextReset = %v, want %v", got, want)
	}
}
