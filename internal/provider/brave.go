// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/pdiddy/eduscout/internal/httputil"
	"github.com/pdiddy/eduscout/pkg/types"
)

// braveAPIBase is the Brave Search API endpoint. Declared as a var so
// tests can substitute an httptest server.
var braveAPIBase = "https://api.search.brave.com/res/v1/web/search"

// BraveBackend queries the Brave Search API (R1.4). Second in priority;
// it reaches non-YouTube hosting platforms.
type BraveBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	quota *quotaTracker
	pacer *rate.Limiter
}

// NewBraveBackend creates a Brave client with a monthly request budget.
func NewBraveBackend(client *http.Client, cfg types.ProviderConfig) *BraveBackend {
	monthly := cfg.BraveMonthlyQuota
	if monthly <= 0 {
		monthly = 2000
	}
	return &BraveBackend{
		Client:    client,
		APIKey:    cfg.BraveAPIKey,
		UserAgent: cfg.UserAgent,
		quota:     newQuotaTracker(monthly, windowMonthly),
		pacer:     newPacer(cfg.RequestsPerSecond),
	}
}

// Name returns the backend identifier.
func (b *BraveBackend) Name() string { return "brave" }

// Priority ranks Brave after YouTube.
func (b *BraveBackend) Priority() int { return 2 }

// Languages returns nil: Brave serves all language families.
func (b *BraveBackend) Languages() []string { return nil }

// Quota reports the remaining monthly request budget.
func (b *BraveBackend) Quota() QuotaState { return b.quota.state() }

// Search queries the Brave web search API (R1.4).
func (b *BraveBackend) Search(ctx context.Context, query string, maxResults int) ([]types.RawResult, error) {
	if !b.quota.spend(1) {
		return nil, fmt.Errorf("brave monthly budget: %w", types.ErrQuotaExhausted)
	}

	if err := b.pacer.Wait(ctx); err != nil {
		b.quota.refund(1)
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = 10
	}
	params := url.Values{
		"q":     {query},
		"count": {fmt.Sprintf("%d", maxResults)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, braveAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		b.quota.refund(1)
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)
	req.Header.Set("User-Agent", b.UserAgent)

	resp, err := httputil.DoWithSingleRetry(ctx, b.Client, req)
	if err != nil {
		b.quota.refund(1)
		return nil, fmt.Errorf("%w: brave request: %w", types.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		// Plan exhaustion survives the single internal retry as a 429.
		b.quota.exhaust()
		return nil, fmt.Errorf("brave API: %w", types.ErrQuotaExhausted)
	default:
		return nil, fmt.Errorf("%w: brave API returned HTTP %d", types.ErrProviderTransient, resp.StatusCode)
	}

	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("%w: parsing brave response: %w", types.ErrProviderTransient, err)
	}

	var results []types.RawResult
	for _, r := range br.Web.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, types.RawResult{
			Title:    r.Title,
			URL:      r.URL,
			Snippet:  r.Description,
			Provider: b.Name(),
		})
		if len(results) == maxResults {
			break
		}
	}
	return results, nil
}

// Brave Search API JSON structures.
type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
