// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scorer ranks merged search results for a market request. It
// runs in three stages: a deterministic rule pass, a bounded-concurrency
// generative pass for the results the rules could not settle, and a
// reconciliation pass against the market knowledge record. See
// docs/ARCHITECTURE § Scoring and prd006-scoring.
package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/internal/genai"
	"github.com/pdiddy/eduscout/internal/knowledge"
	"github.com/pdiddy/eduscout/internal/query"
	"github.com/pdiddy/eduscout/pkg/types"
)

// maxLLMConcurrency bounds in-flight model calls regardless of config.
const maxLLMConcurrency = 5

const defaultSelectionFloor = 6.0

// Knowledge is the slice of the market knowledge store the scorer needs.
// *knowledge.Store satisfies it.
type Knowledge interface {
	Record(ctx context.Context, country string) (*types.KnowledgeRecord, error)
	ObserveVariant(ctx context.Context, country string, kind knowledge.ExpressionKind, canonical, variant string) error
	RecordMistake(ctx context.Context, country string, m types.Mistake) error
	Validated(record *types.KnowledgeRecord, kind knowledge.ExpressionKind, canonical, variant string) bool
}

// Scorer ranks raw results for one request.
type Scorer struct {
	completer query.Completer
	kb        Knowledge
	cfg       types.ScoringConfig
	logger    *zap.Logger

	// priority resolves a provider name to its rank for tie-breaking;
	// lower is better. Unknown providers sort last.
	priority func(name string) int
}

func New(completer query.Completer, kb Knowledge, cfg types.ScoringConfig, priority func(string) int, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if priority == nil {
		priority = func(string) int { return 99 }
	}
	return &Scorer{completer: completer, kb: kb, cfg: cfg, logger: logger, priority: priority}
}

// Score evaluates and orders the merged results. The returned slice is
// sorted score-descending, ties broken by provider rank then title, and
// each result above the selection floor is marked Selected.
func (s *Scorer) Score(ctx context.Context, req types.SearchRequest, strategy types.Strategy, raw []types.RawResult) ([]types.SearchResult, error) {
	lang := query.LanguageFor(req.Country)

	record, err := s.kb.Record(ctx, req.Country)
	if err != nil {
		// Scoring degrades to rules-only knowledge rather than failing
		// the whole request.
		s.logger.Warn("knowledge record unavailable, scoring without it",
			zap.String("country", req.Country), zap.Error(err))
		record = nil
	}

	validated := func(kind knowledge.ExpressionKind, canonical, variant string) bool {
		if record == nil {
			return false
		}
		return s.kb.Validated(record, kind, canonical, variant)
	}
	rc := newRuleContext(req, lang, record, s.cfg, strategy, validated)

	results := make([]types.SearchResult, len(raw))
	outcomes := make([]ruleOutcome, len(raw))
	var pending []int
	for i, r := range raw {
		out := rc.evaluate(r)
		outcomes[i] = out
		results[i] = types.SearchResult{
			Title:             r.Title,
			URL:               r.URL,
			Snippet:           r.Snippet,
			SourceProvider:    r.Provider,
			Score:             out.score,
			Reason:            strings.Join(out.reasons, "; "),
			IdentifiedGrade:   out.identifiedGrade,
			IdentifiedSubject: out.identifiedSubject,
			Method:            types.EvalRule,
		}
		if !out.terminal {
			pending = append(pending, i)
		}
	}

	s.assessPending(ctx, req, lang, record, raw, outcomes, results, pending)

	s.order(results)

	floor := s.cfg.SelectionFloor
	if floor <= 0 {
		floor = defaultSelectionFloor
	}
	for i := range results {
		results[i].Selected = results[i].Score >= floor
	}
	return results, nil
}

// assessPending runs the generative stage over the non-terminal results
// with a bounded worker pool, then reconciles each verdict in place.
func (s *Scorer) assessPending(ctx context.Context, req types.SearchRequest, lang query.Language, record *types.KnowledgeRecord, raw []types.RawResult, outcomes []ruleOutcome, results []types.SearchResult, pending []int) {
	if s.completer == nil || len(pending) == 0 {
		return
	}
	sem := make(chan struct{}, s.llmConcurrency())
	var wg sync.WaitGroup
	for _, i := range pending {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			verdict, err := s.assess(ctx, req, lang, raw[i])
			if err != nil {
				// Model unavailable or unparseable output: the rule
				// score stands and the method stays "rule" (prd006 R2.4).
				s.logger.Debug("generative assessment unavailable",
					zap.String("url", raw[i].URL), zap.Error(err))
				return
			}
			s.reconcile(ctx, req, record, outcomes[i], verdict, &results[i])
		}()
	}
	wg.Wait()
}

// llmConcurrency resolves the generative worker bound: the configured
// value capped at maxLLMConcurrency, which is also the default.
func (s *Scorer) llmConcurrency() int {
	c := s.cfg.LLMConcurrency
	if c <= 0 || c > maxLLMConcurrency {
		return maxLLMConcurrency
	}
	return c
}

// assessment is the structured verdict requested from the model.
type assessment struct {
	Grade   string  `json:"grade"`
	Subject string  `json:"subject"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

const assessSystem = `You assess whether a search result is a useful educational video resource for a specific grade and subject. Reply with a single JSON object and nothing else: {"grade": "<grade named in the result, empty if none>", "subject": "<subject named in the result, empty if none>", "score": <0-10>, "reason": "<one sentence>"}`

func (s *Scorer) assess(ctx context.Context, req types.SearchRequest, lang query.Language, r types.RawResult) (assessment, error) {
	user := fmt.Sprintf("Request: country=%s language=%s grade=%s subject=%s\nResult title: %s\nResult snippet: %s\nResult URL: %s",
		req.Country, lang.Name, req.Grade, req.Subject, r.Title, r.Snippet, r.URL)
	out, err := s.completer.Complete(ctx, genai.Request{
		System:    assessSystem,
		User:      user,
		MaxTokens: 256,
		PlainText: true,
	})
	if err != nil {
		return assessment{}, err
	}
	var a assessment
	if err := json.Unmarshal([]byte(extractJSON(out)), &a); err != nil {
		return assessment{}, fmt.Errorf("parsing assessment: %w", err)
	}
	if a.Score < 0 || a.Score > 10 {
		return assessment{}, errors.New("assessment score out of range")
	}
	return a, nil
}

// extractJSON trims model chatter around the outermost JSON object.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// reconcile folds the model's verdict into the result, checking it
// against the rule outcome and the market knowledge record (prd006 R4).
func (s *Scorer) reconcile(ctx context.Context, req types.SearchRequest, record *types.KnowledgeRecord, rule ruleOutcome, verdict assessment, result *types.SearchResult) {
	result.Method = types.EvalLLM
	result.Score = verdict.Score
	if verdict.Reason != "" {
		result.Reason = verdict.Reason
	}
	if verdict.Grade != "" {
		result.IdentifiedGrade = verdict.Grade
	}
	if verdict.Subject != "" {
		result.IdentifiedSubject = verdict.Subject
	}

	// A high verdict on text containing a recorded trap phrase repeats a
	// known mistake and is overridden outright.
	if record != nil && verdict.Score > rule.score {
		if m, ok := knowledge.KnownMistake(record, result.Title+" "+result.Snippet); ok {
			result.Method = types.EvalLLMKB
			result.Score = rule.score
			result.Reason = fmt.Sprintf("known mistake phrase %q (%s); rule score applied", m.Example, m.Correction)
			result.IdentifiedGrade = rule.identifiedGrade
			return
		}
	}

	// The rules found concrete counter-evidence (a different grade number
	// in the text) but the model scored the result high anyway: the rules
	// win whether the model claimed the requested grade or honestly named
	// the mismatched one, and the trap phrase is recorded so the next
	// occurrence is caught before this point.
	if rule.gradeConflict && verdict.Score > rule.score {
		result.Method = types.EvalLLMKB
		result.Score = rule.score
		result.Reason = "grade named in text conflicts with request; rule score applied"
		if err := s.kb.RecordMistake(ctx, req.Country, types.Mistake{
			Example:    rule.conflictText,
			Correction: "does not match " + req.Grade,
			Severity:   types.SeverityModerate,
			RecordedAt: time.Now().UTC(),
		}); err != nil {
			s.logger.Warn("recording mistake", zap.String("country", req.Country), zap.Error(err))
		}
		return
	}

	// Agreement on the grade through a local phrasing the rules did not
	// recognize is the learning signal: observe the variant so its
	// confidence grows toward validated (prd005 R2.2).
	gradeAgrees := verdict.Grade != "" && firstNumber(verdict.Grade) == firstNumber(req.Grade)
	if gradeAgrees && !strings.EqualFold(verdict.Grade, req.Grade) && rule.identifiedGrade == "" {
		s.observe(ctx, req.Country, knowledge.KindGrade, req.Grade, verdict.Grade)
	}
	if verdict.Subject != "" && !strings.EqualFold(verdict.Subject, req.Subject) && rule.identifiedSubject == "" && verdict.Score >= 5 {
		s.observe(ctx, req.Country, knowledge.KindSubject, req.Subject, verdict.Subject)
	}
}

func (s *Scorer) observe(ctx context.Context, country string, kind knowledge.ExpressionKind, canonical, variant string) {
	if err := s.kb.ObserveVariant(ctx, country, kind, canonical, variant); err != nil {
		s.logger.Warn("observing variant",
			zap.String("country", country), zap.String("variant", variant), zap.Error(err))
	}
}

// order sorts score-descending with deterministic tie-breaks: provider
// rank, then title (prd006 R5.1).
func (s *Scorer) order(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		pa, pb := s.priority(a.SourceProvider), s.priority(b.SourceProvider)
		if pa != pb {
			return pa < pb
		}
		return a.Title < b.Title
	})
}
