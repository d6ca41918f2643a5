// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache stores raw provider responses keyed by (query, provider)
// with a TTL, so repeated searches are deterministic and cheap.
// Implements: prd003-result-cache (R1-R3);
//
//	docs/ARCHITECTURE § Result Cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/eduscout/pkg/types"
)

// Store is the cache contract. Payloads are write-once: a Set for an
// existing live key is a no-op, keeping entries immutable (R1.3). A hit
// is shape-identical to a live provider response (R3.2).
type Store interface {
	// Get returns the payload and true on a hit. Expired entries are
	// misses (R2.2).
	Get(ctx context.Context, query, provider string) ([]types.RawResult, bool, error)

	// Set writes the payload under (query, provider).
	Set(ctx context.Context, query, provider string, payload []types.RawResult) error

	// Stats reports hit/miss counters (R3.1).
	Stats() Stats
}

// Stats holds cache effectiveness counters.
type Stats struct {
	Hits   int64 `json:"hits" yaml:"hits"`
	Misses int64 `json:"misses" yaml:"misses"`
}

// counters is embedded by both store implementations.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

func (c *counters) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Key returns the stable cache key: the hex SHA-256 of the normalized
// query text and the provider id (R1.1). Normalization is NFC plus
// lowercase plus whitespace collapse, so trivially different spellings
// of the same query share an entry.
func Key(query, provider string) string {
	h := sha256.New()
	h.Write([]byte(normalizeQuery(query)))
	h.Write([]byte{0})
	h.Write([]byte(provider))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeQuery(q string) string {
	q = norm.NFC.String(q)
	q = strings.ToLower(q)
	return strings.Join(strings.Fields(q), " ")
}
