// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge persists the per-country ledger of validated local
// phrasings and recorded scoring-model mistakes.
// Implements: prd005-market-knowledge (R1-R4);
//
//	docs/ARCHITECTURE § Market Knowledge.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/eduscout/pkg/types"
)

const dbFile = "markets.db"

// ExpressionKind distinguishes grade from subject variants in storage.
type ExpressionKind string

const (
	KindGrade   ExpressionKind = "grade"
	KindSubject ExpressionKind = "subject"
)

// Store manages the market knowledge SQLite database. Reads may run
// concurrently; writes for one country are serialized through a
// per-country lock so concurrent scoring tasks never lose updates (R4.1).
type Store struct {
	db  *sql.DB
	cfg types.KnowledgeConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore opens or creates the knowledge database at cfg.Dir/markets.db,
// creating the schema if needed (R1.3).
func NewStore(cfg types.KnowledgeConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating knowledge directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.InitialConfidence <= 0 {
		cfg.InitialConfidence = 0.3
	}
	if cfg.ValidatedConfidence <= 0 {
		cfg.ValidatedConfidence = 0.6
	}

	s := &Store{db: db, cfg: cfg, locks: make(map[string]*sync.Mutex)}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS markets (
			country TEXT PRIMARY KEY,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS expressions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			country TEXT NOT NULL REFERENCES markets(country),
			kind TEXT NOT NULL,
			canonical TEXT NOT NULL,
			variant TEXT NOT NULL,
			confidence REAL NOT NULL,
			observations INTEGER NOT NULL DEFAULT 1,
			UNIQUE(country, kind, canonical, variant)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expressions_country ON expressions(country)`,
		`CREATE TABLE IF NOT EXISTS mistakes (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			country TEXT NOT NULL REFERENCES markets(country),
			example TEXT NOT NULL,
			correction TEXT NOT NULL,
			severity TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mistakes_country ON mistakes(country)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// countryLock returns the write lock for a country, creating it on first
// use (R4.1).
func (s *Store) countryLock(country string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[country]
	if !ok {
		l = &sync.Mutex{}
		s.locks[country] = l
	}
	return l
}

// Record loads the KnowledgeRecord for a country, creating an empty one
// on the first search for that market (R1.1).
func (s *Store) Record(ctx context.Context, country string) (*types.KnowledgeRecord, error) {
	country = strings.ToUpper(country)
	if err := s.ensureMarket(ctx, country); err != nil {
		return nil, err
	}

	record := &types.KnowledgeRecord{
		Country:            country,
		GradeExpressions:   make(map[string][]types.Expression),
		SubjectExpressions: make(map[string][]types.Expression),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, canonical, variant, confidence, observations
		 FROM expressions WHERE country = ? ORDER BY kind, canonical, variant`, country)
	if err != nil {
		return nil, fmt.Errorf("querying expressions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, canonical string
		var expr types.Expression
		if err := rows.Scan(&kind, &canonical, &expr.Text, &expr.Confidence, &expr.Observations); err != nil {
			return nil, fmt.Errorf("scanning expression: %w", err)
		}
		switch ExpressionKind(kind) {
		case KindGrade:
			record.GradeExpressions[canonical] = append(record.GradeExpressions[canonical], expr)
		case KindSubject:
			record.SubjectExpressions[canonical] = append(record.SubjectExpressions[canonical], expr)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expressions: %w", err)
	}

	mrows, err := s.db.QueryContext(ctx,
		`SELECT example, correction, severity, recorded_at
		 FROM mistakes WHERE country = ? ORDER BY rowid`, country)
	if err != nil {
		return nil, fmt.Errorf("querying mistakes: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var m types.Mistake
		var recordedAt string
		if err := mrows.Scan(&m.Example, &m.Correction, &m.Severity, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning mistake: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339Nano, recordedAt); parseErr == nil {
			m.RecordedAt = t
		}
		record.Mistakes = append(record.Mistakes, m)
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mistakes: %w", err)
	}

	return record, nil
}

func (s *Store) ensureMarket(ctx context.Context, country string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO markets (country, updated_at) VALUES (?, ?)`,
		country, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ensuring market %s: %w", country, err)
	}
	return nil
}

// ObserveVariant records one sighting of a local-language variant for a
// canonical grade or subject label. A novel variant starts at the
// configured initial confidence; a repeat sighting increments the
// observation count and grows confidence toward 0.95 (R2.2, R3.1).
// Never deletes or lowers anything: the variant set is monotonic (R3.2).
func (s *Store) ObserveVariant(ctx context.Context, country string, kind ExpressionKind, canonical, variant string) error {
	country = strings.ToUpper(country)
	canonical = strings.TrimSpace(canonical)
	variant = normalizeVariant(variant)
	if canonical == "" || variant == "" {
		return nil
	}

	lock := s.countryLock(country)
	lock.Lock()
	defer lock.Unlock()

	if err := s.ensureMarket(ctx, country); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expressions (country, kind, canonical, variant, confidence, observations)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(country, kind, canonical, variant) DO UPDATE SET
			observations = observations + 1,
			confidence = min(0.95, confidence + 0.15)`,
		country, string(kind), canonical, variant, s.cfg.InitialConfidence)
	if err != nil {
		return fmt.Errorf("observing variant: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE markets SET updated_at = ? WHERE country = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), country)
	if err != nil {
		return fmt.Errorf("touching market: %w", err)
	}
	return nil
}

// RecordMistake appends one scoring-model mistake to the country's
// ledger. The list strictly grows (R2.1).
func (s *Store) RecordMistake(ctx context.Context, country string, m types.Mistake) error {
	country = strings.ToUpper(country)

	lock := s.countryLock(country)
	lock.Lock()
	defer lock.Unlock()

	if err := s.ensureMarket(ctx, country); err != nil {
		return err
	}

	recordedAt := m.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mistakes (country, example, correction, severity, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		country, m.Example, m.Correction, string(m.Severity), recordedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording mistake: %w", err)
	}
	return nil
}

// Validated reports whether a variant is a validated phrasing of the
// canonical label, at or above the configured confidence (R2.3).
func (s *Store) Validated(record *types.KnowledgeRecord, kind ExpressionKind, canonical, variant string) bool {
	variant = normalizeVariant(variant)
	exprs := record.GradeExpressions[canonical]
	if kind == KindSubject {
		exprs = record.SubjectExpressions[canonical]
	}
	for _, e := range exprs {
		if normalizeVariant(e.Text) == variant && e.Confidence >= s.cfg.ValidatedConfidence {
			return true
		}
	}
	return false
}

// KnownMistake reports whether the text repeats any recorded mistake
// example for the market. Matching is by normalized containment: the
// examples are trap phrases that may appear anywhere in a title or
// snippet (R2.4).
func KnownMistake(record *types.KnowledgeRecord, text string) (types.Mistake, bool) {
	text = normalizeVariant(text)
	for _, m := range record.Mistakes {
		if m.Example != "" && strings.Contains(text, normalizeVariant(m.Example)) {
			return m, true
		}
	}
	return types.Mistake{}, false
}

// normalizeVariant lowercases and collapses whitespace so trivially
// different spellings compare equal across languages.
func normalizeVariant(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
