// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package genai calls generative-model APIs through interchangeable
// backends with ordered fallback.
// Implements: prd001-query-generation (R3), prd006-scoring (R3);
//
//	docs/ARCHITECTURE § Generative Backends.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/pkg/types"
)

// Request describes one completion call.
type Request struct {
	// System is the system instruction.
	System string

	// User is the user instruction.
	User string

	// MaxTokens caps the completion length. Zero uses the backend default.
	MaxTokens int

	// Temperature controls sampling. Query generation and scoring use a
	// low value for reproducibility.
	Temperature float32

	// Model overrides the backend's configured model when non-empty.
	Model string

	// PlainText forces a plain structured-text completion and forbids
	// tool-invocation responses.
	PlainText bool
}

// Backend completes one request against a single model API. Each
// implementation covers one vendor endpoint, per the Strategy pattern.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrAllBackendsFailed is returned by Chain when every backend failed.
var ErrAllBackendsFailed = errors.New("all generative backends failed")

// Chain tries backends in priority order, one attempt each, and returns
// the first non-empty completion. Empty or whitespace-only output counts
// as a failure and moves on to the next backend.
type Chain struct {
	backends []Backend
	logger   *zap.Logger
}

// NewChain builds a fallback chain. Backends are tried in the order given.
func NewChain(logger *zap.Logger, backends ...Backend) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{backends: backends, logger: logger}
}

// Complete runs the request through the chain. The returned error wraps
// types.ErrGenAIFailure so callers can branch on the taxonomy.
func (c *Chain) Complete(ctx context.Context, req Request) (string, error) {
	if len(c.backends) == 0 {
		return "", fmt.Errorf("%w: no backends configured: %w", types.ErrGenAIFailure, ErrAllBackendsFailed)
	}

	var lastErr error
	for _, b := range c.backends {
		out, err := b.Complete(ctx, req)
		if err != nil {
			c.logger.Warn("generative backend failed",
				zap.String("backend", b.Name()),
				zap.Error(err))
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if strings.TrimSpace(out) == "" {
			c.logger.Warn("generative backend returned empty output",
				zap.String("backend", b.Name()))
			lastErr = fmt.Errorf("backend %s: empty completion", b.Name())
			continue
		}
		return out, nil
	}

	return "", fmt.Errorf("%w: %w: %w", types.ErrGenAIFailure, ErrAllBackendsFailed, lastErr)
}
