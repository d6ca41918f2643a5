// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the provider clients.
package httputil

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RetryDelay is the pause before the single internal retry. Tests
// override this to avoid real sleeps.
var RetryDelay = 2 * time.Second

// DoWithSingleRetry executes an HTTP request and retries exactly once on
// HTTP 429 or a 5xx status. Provider clients get at most one internal
// retry; all further retry, backoff, and fallback ordering belongs to the
// search orchestrator (prd002-provider-clients R2.3).
//
// Before the retry the response body is drained and closed. If the
// context is cancelled during the wait the function returns ctx.Err().
// A second failing response is returned as-is so the caller can map the
// status to the error taxonomy.
func DoWithSingleRetry(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	if !retriable(resp.StatusCode) {
		return resp, nil
	}

	// Drain and close the body before retrying.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(RetryDelay):
	}

	return client.Do(req.Clone(ctx))
}

// retriable reports whether a status warrants the single internal retry.
func retriable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
