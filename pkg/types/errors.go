// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error taxonomy for the pipeline. Expected conditions are sentinel
// values matched with errors.Is rather than exception-style control flow.
// Per prd009-pipeline R2.1-R2.5.
var (
	// ErrQuotaExhausted marks a provider whose quota is spent for the
	// current window. Not retriable on that provider; the orchestrator
	// falls through the priority list.
	ErrQuotaExhausted = errors.New("provider quota exhausted")

	// ErrProviderTransient marks a retriable provider failure (network,
	// HTTP 5xx, rate limiting past the client's single internal retry).
	ErrProviderTransient = errors.New("transient provider failure")

	// ErrGenAIFailure marks a generative call that timed out or returned
	// empty/malformed output. Callers fall back to rule scoring; never
	// surfaced to the pipeline caller.
	ErrGenAIFailure = errors.New("generative call failed")

	// ErrBusy is returned when the admission gate cannot grant a permit
	// within the configured wait. Callers should retry later.
	ErrBusy = errors.New("system busy, retry later")
)
