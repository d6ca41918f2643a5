// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/eduscout/internal/httputil"
	"github.com/pdiddy/eduscout/pkg/types"
)

// youtubeAPIBase is the YouTube Data API search endpoint. Declared as a
// var so tests can substitute an httptest server.
var youtubeAPIBase = "https://www.googleapis.com/youtube/v3/search"

// youtubeSearchCost is the Data API unit price of one search call.
const youtubeSearchCost = 100

// YouTubeBackend queries the YouTube Data API v3 (R1.3). It is the
// highest-priority backend for video content in every market.
type YouTubeBackend struct {
	Client    *http.Client
	APIKey    string
	UserAgent string

	quota *quotaTracker
	pacer *rate.Limiter
}

// NewYouTubeBackend creates a YouTube client with a daily unit budget.
func NewYouTubeBackend(client *http.Client, cfg types.ProviderConfig) *YouTubeBackend {
	dailyQuota := cfg.YouTubeDailyQuota
	if dailyQuota <= 0 {
		dailyQuota = 10000
	}
	return &YouTubeBackend{
		Client:    client,
		APIKey:    cfg.YouTubeAPIKey,
		UserAgent: cfg.UserAgent,
		quota:     newQuotaTracker(dailyQuota, windowDaily),
		pacer:     newPacer(cfg.RequestsPerSecond),
	}
}

// Name returns the backend identifier.
func (b *YouTubeBackend) Name() string { return "youtube" }

// Priority ranks YouTube first for video resources.
func (b *YouTubeBackend) Priority() int { return 1 }

// Languages returns nil: YouTube serves all language families.
func (b *YouTubeBackend) Languages() []string { return nil }

// Quota reports the remaining daily unit budget.
func (b *YouTubeBackend) Quota() QuotaState { return b.quota.state() }

// Search queries the Data API for videos and playlists (R1.3).
func (b *YouTubeBackend) Search(ctx context.Context, query string, maxResults int) ([]types.RawResult, error) {
	if !b.quota.spend(youtubeSearchCost) {
		return nil, fmt.Errorf("youtube daily budget: %w", types.ErrQuotaExhausted)
	}

	if err := b.pacer.Wait(ctx); err != nil {
		b.quota.refund(youtubeSearchCost)
		return nil, err
	}

	if maxResults <= 0 {
		maxResults = 10
	}
	params := url.Values{
		"part":       {"snippet"},
		"q":          {query},
		"type":       {"video,playlist"},
		"maxResults": {fmt.Sprintf("%d", maxResults)},
		"key":        {b.APIKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		b.quota.refund(youtubeSearchCost)
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.UserAgent)

	resp, err := httputil.DoWithSingleRetry(ctx, b.Client, req)
	if err != nil {
		b.quota.refund(youtubeSearchCost)
		return nil, fmt.Errorf("%w: youtube request: %w", types.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// The Data API reports an exhausted budget as 403 quotaExceeded.
		if isQuotaError(resp) {
			b.quota.exhaust()
			return nil, fmt.Errorf("youtube API: %w", types.ErrQuotaExhausted)
		}
		return nil, fmt.Errorf("%w: youtube API returned HTTP 403", types.ErrProviderTransient)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: youtube API returned HTTP %d", types.ErrProviderTransient, resp.StatusCode)
	}

	var yr youtubeResponse
	if err := json.NewDecoder(resp.Body).Decode(&yr); err != nil {
		return nil, fmt.Errorf("%w: parsing youtube response: %w", types.ErrProviderTransient, err)
	}

	var results []types.RawResult
	for _, item := range yr.Items {
		u := itemURL(item)
		if u == "" {
			continue
		}
		results = append(results, types.RawResult{
			Title:    item.Snippet.Title,
			URL:      u,
			Snippet:  item.Snippet.Description,
			Provider: b.Name(),
		})
	}
	return results, nil
}

// isQuotaError inspects a 403 body for the quotaExceeded reason.
func isQuotaError(resp *http.Response) bool {
	var body struct {
		Error struct {
			Errors []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	for _, e := range body.Error.Errors {
		if strings.Contains(e.Reason, "quota") || e.Reason == "dailyLimitExceeded" {
			return true
		}
	}
	return false
}

func itemURL(item youtubeItem) string {
	switch {
	case item.ID.VideoID != "":
		return "https://www.youtube.com/watch?v=" + item.ID.VideoID
	case item.ID.PlaylistID != "":
		return "https://www.youtube.com/playlist?list=" + item.ID.PlaylistID
	default:
		return ""
	}
}

// YouTube Data API JSON structures.
type youtubeResponse struct {
	Items []youtubeItem `json:"items"`
}

type youtubeItem struct {
	ID struct {
		Kind       string `json:"kind"`
		VideoID    string `json:"videoId"`
		PlaylistID string `json:"playlistId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}
