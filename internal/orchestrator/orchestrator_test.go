// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/internal/cache"
	"github.com/pdiddy/eduscout/internal/provider"
	"github.com/pdiddy/eduscout/pkg/types"
)

// --- mock backend ---

type mockBackend struct {
	name      string
	priority  int
	results   []types.RawResult
	err       error
	exhausted bool
	delay     time.Duration
	calls     atomic.Int32
}

func (m *mockBackend) Name() string        { return m.name }
func (m *mockBackend) Priority() int       { return m.priority }
func (m *mockBackend) Languages() []string { return nil }

func (m *mockBackend) Quota() provider.QuotaState {
	if m.exhausted {
		return provider.QuotaState{Remaining: 0, Limit: 100}
	}
	return provider.QuotaState{Remaining: 100, Limit: 100}
}

func (m *mockBackend) Search(ctx context.Context, _ string, _ int) ([]types.RawResult, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.results, m.err
}

func raw(provider, url, title string) types.RawResult {
	return types.RawResult{Title: title, URL: url, Snippet: "snippet", Provider: provider}
}

func testOrch(backends []provider.Backend) (*Orchestrator, *cache.MemoryStore) {
	store := cache.NewMemoryStore(types.CacheConfig{TTL: time.Hour})
	cfg := types.OrchestratorConfig{MaxResultsPerProvider: 10, WorkerPoolSize: 4, TaskTimeout: 5 * time.Second}
	return New(backends, store, cfg, zap.NewNop()), store
}

func TestExecuteMergesAcrossProviders(t *testing.T) {
	yt := &mockBackend{name: "youtube", priority: 1, results: []types.RawResult{
		raw("youtube", "https://youtube.com/watch?v=a", "Video A"),
	}}
	brave := &mockBackend{name: "brave", priority: 2, results: []types.RawResult{
		raw("brave", "https://ruangguru.com/kelas-1", "Course B"),
	}}
	o, _ := testOrch([]provider.Backend{yt, brave})

	merged := o.Execute(context.Background(), []string{"matematika kelas 1"}, "id", types.Strategy{})
	if len(merged.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(merged.Results))
	}
	if len(merged.ProviderErrors) != 0 {
		t.Errorf("ProviderErrors = %v, want none", merged.ProviderErrors)
	}
}

func TestExecuteDedupesByCanonicalURL(t *testing.T) {
	// Two providers return the same video under different URL spellings
	// and different titles; exactly one result must survive, with the
	// first-seen title.
	yt := &mockBackend{name: "youtube", priority: 1, results: []types.RawResult{
		raw("youtube", "https://www.youtube.com/watch?v=same", "YouTube Title"),
	}}
	brave := &mockBackend{name: "brave", priority: 2, results: []types.RawResult{
		raw("brave", "http://youtube.com/watch?v=same&utm_source=brave", "Brave Title"),
	}}
	o, _ := testOrch([]provider.Backend{yt, brave})

	merged := o.Execute(context.Background(), []string{"q"}, "id", types.Strategy{})
	if len(merged.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(merged.Results))
	}
	if merged.DupsRemoved != 1 {
		t.Errorf("DupsRemoved = %d, want 1", merged.DupsRemoved)
	}
	if merged.Results[0].URL != "https://youtube.com/watch?v=same" {
		t.Errorf("URL = %q, want canonical form", merged.Results[0].URL)
	}
}

func TestExecuteUsesCache(t *testing.T) {
	yt := &mockBackend{name: "youtube", priority: 1, results: []types.RawResult{
		raw("youtube", "https://youtube.com/watch?v=a", "Video A"),
	}}
	o, _ := testOrch([]provider.Backend{yt})
	ctx := context.Background()

	first := o.Execute(ctx, []string{"q"}, "id", types.Strategy{})
	if first.CacheHits != 0 {
		t.Errorf("first pass CacheHits = %d, want 0", first.CacheHits)
	}

	second := o.Execute(ctx, []string{"q"}, "id", types.Strategy{})
	if second.CacheHits != 1 {
		t.Errorf("second pass CacheHits = %d, want 1", second.CacheHits)
	}
	if got := yt.calls.Load(); got != 1 {
		t.Errorf("live calls = %d, want 1 (second pass served from cache)", got)
	}
	// A hit must be shape-identical to the live response.
	if len(second.Results) != len(first.Results) || second.Results[0] != first.Results[0] {
		t.Errorf("cached pass differs from live pass: %+v vs %+v", second.Results, first.Results)
	}
}

func TestExecuteTransientRetryOnce(t *testing.T) {
	failing := &mockBackend{name: "youtube", priority: 1,
		err: fmt.Errorf("%w: HTTP 502", types.ErrProviderTransient)}
	o, _ := testOrch([]provider.Backend{failing})

	merged := o.Execute(context.Background(), []string{"q"}, "id", types.Strategy{})
	if got := failing.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2 (one orchestrator-level retry)", got)
	}
	if len(merged.ProviderErrors) != 1 {
		t.Errorf("ProviderErrors = %v, want one entry", merged.ProviderErrors)
	}
}

func TestExecuteQuotaExhaustedNotRetried(t *testing.T) {
	exhaustedErr := &mockBackend{name: "youtube", priority: 1,
		err: fmt.Errorf("api: %w", types.ErrQuotaExhausted)}
	o, _ := testOrch([]provider.Backend{exhaustedErr})

	o.Execute(context.Background(), []string{"q"}, "id", types.Strategy{})
	if got := exhaustedErr.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (quota exhaustion is not retriable)", got)
	}
}

func TestExecuteSkipsExhaustedProviders(t *testing.T) {
	spent := &mockBackend{name: "youtube", priority: 1, exhausted: true}
	alive := &mockBackend{name: "brave", priority: 2, results: []types.RawResult{
		raw("brave", "https://example.com/a", "A"),
	}}
	ddg := &mockBackend{name: "duckduckgo", priority: 3, results: []types.RawResult{
		raw("duckduckgo", "https://example.com/b", "B"),
	}}
	o, _ := testOrch([]provider.Backend{spent, alive, ddg})

	merged := o.Execute(context.Background(), []string{"q"}, "id", types.Strategy{})
	if spent.calls.Load() != 0 {
		t.Error("exhausted provider should not be called")
	}
	// Degrades to the next two in priority order.
	if len(merged.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(merged.Results))
	}
}

func TestExecuteAllProvidersFailReturnsEmpty(t *testing.T) {
	a := &mockBackend{name: "youtube", priority: 1, err: fmt.Errorf("%w: down", types.ErrProviderTransient)}
	b := &mockBackend{name: "brave", priority: 2, err: fmt.Errorf("%w: down", types.ErrProviderTransient)}
	o, _ := testOrch([]provider.Backend{a, b})

	merged := o.Execute(context.Background(), []string{"q"}, "id", types.Strategy{})
	if len(merged.Results) != 0 {
		t.Errorf("Results = %v, want empty", merged.Results)
	}
	if len(merged.ProviderErrors) != 2 {
		t.Errorf("ProviderErrors = %d entries, want 2", len(merged.ProviderErrors))
	}
}

func TestExecuteSlowProviderDoesNotBlockFast(t *testing.T) {
	slow := &mockBackend{name: "youtube", priority: 1, delay: 10 * time.Second, results: []types.RawResult{
		raw("youtube", "https://example.com/slow", "Slow"),
	}}
	fast := &mockBackend{name: "brave", priority: 2, results: []types.RawResult{
		raw("brave", "https://example.com/fast", "Fast"),
	}}

	store := cache.NewMemoryStore(types.CacheConfig{TTL: time.Hour})
	cfg := types.OrchestratorConfig{WorkerPoolSize: 4, TaskTimeout: 100 * time.Millisecond}
	o := New([]provider.Backend{slow, fast}, store, cfg, zap.NewNop())

	start := time.Now()
	merged := o.Execute(context.Background(), []string{"q"}, "id", types.Strategy{})
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("Execute took %v; slow provider blocked the pass", elapsed)
	}
	if len(merged.Results) != 1 || merged.Results[0].Title != "Fast" {
		t.Errorf("Results = %+v, want the fast provider's result only", merged.Results)
	}
	if len(merged.ProviderErrors) != 1 {
		t.Errorf("ProviderErrors = %v, want the slow provider's timeout", merged.ProviderErrors)
	}
}

func TestExecuteBroadenProvidersStrategy(t *testing.T) {
	a := &mockBackend{name: "youtube", priority: 1, results: []types.RawResult{raw("youtube", "https://e.com/1", "1")}}
	b := &mockBackend{name: "brave", priority: 2, results: []types.RawResult{raw("brave", "https://e.com/2", "2")}}
	c := &mockBackend{name: "duckduckgo", priority: 3, results: []types.RawResult{raw("duckduckgo", "https://e.com/3", "3")}}
	o, _ := testOrch([]provider.Backend{a, b, c})

	// Default pass: top two providers only.
	o.Execute(context.Background(), []string{"q"}, "id", types.Strategy{})
	if c.calls.Load() != 0 {
		t.Error("default pass should not reach the lowest-priority provider")
	}

	// Broadened pass reaches all three. Fresh orchestrator avoids cache reuse.
	o2, _ := testOrch([]provider.Backend{a, b, c})
	merged := o2.Execute(context.Background(), []string{"q2"}, "id", types.Strategy{BroadenProviders: true})
	if c.calls.Load() != 1 {
		t.Error("broadened pass should reach all providers")
	}
	if len(merged.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(merged.Results))
	}
}

func TestProviderPriority(t *testing.T) {
	a := &mockBackend{name: "youtube", priority: 1}
	b := &mockBackend{name: "brave", priority: 2}
	o, _ := testOrch([]provider.Backend{b, a})

	if got := o.ProviderPriority("youtube"); got != 1 {
		t.Errorf("ProviderPriority(youtube) = %d, want 1", got)
	}
	if got := o.ProviderPriority("unknown"); got < 1000 {
		t.Errorf("unknown provider should sort last, got %d", got)
	}
}
