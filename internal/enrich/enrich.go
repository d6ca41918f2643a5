// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich defines the optional enrichment collaborator that can
// supply transcripts, key-frame descriptions, and engagement metrics as
// extra scoring signal. Its absence never fails scoring, it only lowers
// confidence (prd006-scoring R1.6).
package enrich

import "context"

// Signal is the extra evidence an enricher provides for one URL. Any
// field may be empty.
type Signal struct {
	// Transcript is the spoken-word text of the video, when available.
	Transcript string

	// Keyframes describes sampled frames ("whiteboard with fractions").
	Keyframes []string

	// Views and Likes are engagement counts; zero means unknown.
	Views int64
	Likes int64
}

// Enricher fetches extra signal for a URL. Implementations live outside
// the core; the pipeline injects one when configured.
type Enricher interface {
	Enrich(ctx context.Context, url string) (Signal, error)
}

// Noop is the default enricher: it returns an empty signal for every
// URL, which scoring treats as "no extra evidence".
type Noop struct{}

// Enrich implements Enricher.
func (Noop) Enrich(context.Context, string) (Signal, error) { return Signal{}, nil }
