// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/eduscout/internal/httputil"
	"github.com/pdiddy/eduscout/pkg/types"
)

// duckduckgoBase is the DuckDuckGo HTML endpoint. Declared as a var so
// tests can substitute an httptest server.
var duckduckgoBase = "https://html.duckduckgo.com/html/"

// DuckDuckGoBackend scrapes the keyless DuckDuckGo HTML interface (R1.5).
// Last in priority: it has no quota but the weakest result quality, so it
// only runs when the paid providers are exhausted or failing.
type DuckDuckGoBackend struct {
	Client    *http.Client
	UserAgent string

	pacer *rate.Limiter
}

// NewDuckDuckGoBackend creates the keyless fallback client.
func NewDuckDuckGoBackend(client *http.Client, cfg types.ProviderConfig) *DuckDuckGoBackend {
	return &DuckDuckGoBackend{
		Client:    client,
		UserAgent: cfg.UserAgent,
		pacer:     newPacer(cfg.RequestsPerSecond),
	}
}

// Name returns the backend identifier.
func (b *DuckDuckGoBackend) Name() string { return "duckduckgo" }

// Priority ranks DuckDuckGo last.
func (b *DuckDuckGoBackend) Priority() int { return 3 }

// Languages returns nil: the fallback serves all language families.
func (b *DuckDuckGoBackend) Languages() []string { return nil }

// Quota reports an effectively unlimited budget.
func (b *DuckDuckGoBackend) Quota() QuotaState {
	return QuotaState{Remaining: 1, Limit: 0}
}

var (
	ddgResultRe  = regexp.MustCompile(`<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a[^>]+class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
)

// Search scrapes the HTML results page (R1.5).
func (b *DuckDuckGoBackend) Search(ctx context.Context, query string, maxResults int) ([]types.RawResult, error) {
	if err := b.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = 10
	}
	params := url.Values{"q": {query}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, duckduckgoBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.UserAgent)

	resp, err := httputil.DoWithSingleRetry(ctx, b.Client, req)
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo request: %w", types.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: duckduckgo returned HTTP %d", types.ErrProviderTransient, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading duckduckgo response: %w", types.ErrProviderTransient, err)
	}

	return parseDDGHTML(string(body), maxResults, b.Name()), nil
}

// parseDDGHTML extracts result links and snippets from the HTML page.
// Snippets are matched positionally to links, which is how the page lays
// them out; a missing snippet leaves the field empty.
func parseDDGHTML(page string, maxResults int, providerName string) []types.RawResult {
	links := ddgResultRe.FindAllStringSubmatch(page, maxResults)
	snippets := ddgSnippetRe.FindAllStringSubmatch(page, maxResults)

	var results []types.RawResult
	for i, m := range links {
		target := decodeDDGRedirect(m[1])
		if target == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTMLText(snippets[i][1])
		}
		results = append(results, types.RawResult{
			Title:    cleanHTMLText(m[2]),
			URL:      target,
			Snippet:  snippet,
			Provider: providerName,
		})
		if len(results) == maxResults {
			break
		}
	}
	return results
}

// decodeDDGRedirect unwraps the uddg redirect parameter DuckDuckGo wraps
// result URLs in. A plain URL passes through unchanged.
func decodeDDGRedirect(href string) string {
	href = html.UnescapeString(href)
	if !strings.Contains(href, "uddg=") {
		if strings.HasPrefix(href, "http") {
			return href
		}
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	target := u.Query().Get("uddg")
	if target == "" {
		return ""
	}
	return target
}

func cleanHTMLText(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}
