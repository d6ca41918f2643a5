// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scorer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/eduscout/internal/genai"
	"github.com/pdiddy/eduscout/internal/knowledge"
	"github.com/pdiddy/eduscout/internal/query"
	"github.com/pdiddy/eduscout/pkg/types"
)

// mockCompleter scripts model replies and tracks call concurrency.
type mockCompleter struct {
	mu          sync.Mutex
	calls       int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	reply       func(req genai.Request) (string, error)
}

func (m *mockCompleter) Complete(_ context.Context, req genai.Request) (string, error) {
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxInFlight.Load()
		if cur <= prev || m.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.reply == nil {
		return `{"grade": "", "subject": "", "score": 5, "reason": "plausible"}`, nil
	}
	return m.reply(req)
}

func (m *mockCompleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeKB is an in-memory Knowledge implementation.
type fakeKB struct {
	mu       sync.Mutex
	record   *types.KnowledgeRecord
	observed []string
	mistakes []types.Mistake
}

func (f *fakeKB) Record(_ context.Context, country string) (*types.KnowledgeRecord, error) {
	if f.record != nil {
		return f.record, nil
	}
	return &types.KnowledgeRecord{Country: country}, nil
}

func (f *fakeKB) ObserveVariant(_ context.Context, _ string, kind knowledge.ExpressionKind, canonical, variant string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observed = append(f.observed, fmt.Sprintf("%s/%s=%s", kind, canonical, variant))
	return nil
}

func (f *fakeKB) RecordMistake(_ context.Context, _ string, m types.Mistake) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mistakes = append(f.mistakes, m)
	return nil
}

func (f *fakeKB) Validated(record *types.KnowledgeRecord, kind knowledge.ExpressionKind, canonical, variant string) bool {
	exprs := record.GradeExpressions[canonical]
	if kind == knowledge.KindSubject {
		exprs = record.SubjectExpressions[canonical]
	}
	for _, e := range exprs {
		if strings.EqualFold(e.Text, variant) && e.Confidence >= 0.6 {
			return true
		}
	}
	return false
}

func testScoringCfg() types.ScoringConfig {
	return types.ScoringConfig{
		TrustedDomains:    []string{"youtube.com", "khanacademy.org"},
		LLMConcurrency:    3,
		RuleTerminalScore: 8.0,
		SelectionFloor:    6.0,
	}
}

func testPriority(name string) int {
	switch name {
	case "youtube":
		return 1
	case "brave":
		return 2
	default:
		return 3
	}
}

var indonesiaReq = types.SearchRequest{
	Country: "ID",
	Grade:   "Grade 1",
	Subject: "Mathematics",
}

func TestScoreTerminalRuleSkipsModel(t *testing.T) {
	mc := &mockCompleter{}
	s := New(mc, &fakeKB{}, testScoringCfg(), testPriority, nil)

	raw := []types.RawResult{{
		Title:    "Matematika Kelas 1 - Kursus Lengkap",
		URL:      "https://www.youtube.com/playlist?list=PLabc",
		Snippet:  "40 video pembelajaran matematika kelas 1",
		Provider: "youtube",
	}}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.EvalRule, results[0].Method)
	assert.Zero(t, mc.callCount())
	assert.GreaterOrEqual(t, results[0].Score, 8.0)
	assert.True(t, results[0].Selected)
	assert.NotEmpty(t, results[0].IdentifiedGrade)
}

func TestScoreModelVerdictAdopted(t *testing.T) {
	mc := &mockCompleter{reply: func(genai.Request) (string, error) {
		return `{"grade": "kelas 1", "subject": "matematika", "score": 7.5, "reason": "covers the whole grade"}`, nil
	}}
	s := New(mc, &fakeKB{}, testScoringCfg(), testPriority, nil)

	raw := []types.RawResult{{
		Title:    "Belajar hitung untuk pemula",
		URL:      "https://video.example.net/watch/123",
		Provider: "brave",
	}}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.EvalLLM, results[0].Method)
	assert.Equal(t, 7.5, results[0].Score)
	assert.Equal(t, "covers the whole grade", results[0].Reason)
	assert.Equal(t, "kelas 1", results[0].IdentifiedGrade)
	assert.Equal(t, 1, mc.callCount())
}

func TestScoreMalformedVerdictFallsBackToRules(t *testing.T) {
	mc := &mockCompleter{reply: func(genai.Request) (string, error) {
		return "I think this is a great resource!", nil
	}}
	s := New(mc, &fakeKB{}, testScoringCfg(), testPriority, nil)

	raw := []types.RawResult{{
		Title:    "Matematika dasar",
		URL:      "https://video.example.net/watch/456",
		Provider: "brave",
	}}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The rule score and method stand when the model output is unusable.
	assert.Equal(t, types.EvalRule, results[0].Method)
	assert.Equal(t, 1, mc.callCount())
}

func TestScoreModelErrorFallsBackToRules(t *testing.T) {
	mc := &mockCompleter{reply: func(genai.Request) (string, error) {
		return "", genai.ErrAllBackendsFailed
	}}
	s := New(mc, &fakeKB{}, testScoringCfg(), testPriority, nil)

	raw := []types.RawResult{{
		Title:    "Matematika dasar",
		URL:      "https://video.example.net/watch/789",
		Provider: "brave",
	}}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	assert.Equal(t, types.EvalRule, results[0].Method)
}

func TestScoreKnownMistakeOverridesModel(t *testing.T) {
	kb := &fakeKB{record: &types.KnowledgeRecord{
		Country: "ID",
		Mistakes: []types.Mistake{{
			Example:    "semester 2",
			Correction: "does not match Grade 2",
			Severity:   types.SeverityModerate,
		}},
	}}
	mc := &mockCompleter{reply: func(genai.Request) (string, error) {
		return `{"grade": "kelas 2", "subject": "matematika", "score": 9, "reason": "matches grade 2"}`, nil
	}}
	s := New(mc, kb, testScoringCfg(), testPriority, nil)

	req := types.SearchRequest{Country: "ID", Grade: "Grade 2", Subject: "Mathematics"}
	raw := []types.RawResult{{
		Title:    "Matematika semester 2 untuk pemula",
		URL:      "https://video.example.net/watch/11",
		Provider: "brave",
	}}
	results, err := s.Score(context.Background(), req, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.EvalLLMKB, results[0].Method)
	assert.Less(t, results[0].Score, 9.0)
	assert.Contains(t, results[0].Reason, "semester 2")
}

func TestScoreGradeConflictRecordsMistake(t *testing.T) {
	kb := &fakeKB{}
	mc := &mockCompleter{reply: func(genai.Request) (string, error) {
		return `{"grade": "kelas 1", "subject": "matematika", "score": 9, "reason": "looks right"}`, nil
	}}
	s := New(mc, kb, testScoringCfg(), testPriority, nil)

	// The text names grade 3; the model claims it matches grade 1.
	raw := []types.RawResult{{
		Title:    "Matematika kelas 3 lengkap",
		URL:      "https://video.example.net/watch/22",
		Provider: "brave",
	}}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.EvalLLMKB, results[0].Method)
	assert.Less(t, results[0].Score, 9.0)
	require.Len(t, kb.mistakes, 1)
	assert.Equal(t, "kelas 3", kb.mistakes[0].Example)
}

func TestScoreGradeConflictOverridesHonestExtraction(t *testing.T) {
	kb := &fakeKB{}
	mc := &mockCompleter{reply: func(genai.Request) (string, error) {
		return `{"grade": "kelas 6", "subject": "matematika", "score": 9, "reason": "rich full course"}`, nil
	}}
	s := New(mc, kb, testScoringCfg(), testPriority, nil)

	// The model extracts the mismatched grade correctly but still scores
	// the result high. The rule verdict wins either way.
	raw := []types.RawResult{{
		Title:    "Matematika kelas 6 lengkap",
		URL:      "https://video.example.net/watch/44",
		Provider: "brave",
	}}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.EvalLLMKB, results[0].Method)
	assert.Equal(t, 2.0, results[0].Score)
	assert.False(t, results[0].Selected)
	require.Len(t, kb.mistakes, 1)
	assert.Equal(t, "kelas 6", kb.mistakes[0].Example)
}

func TestScoreNovelVariantObserved(t *testing.T) {
	kb := &fakeKB{}
	mc := &mockCompleter{reply: func(genai.Request) (string, error) {
		return `{"grade": "sd kelas 1", "subject": "", "score": 7, "reason": "grade 1 primary"}`, nil
	}}
	s := New(mc, kb, testScoringCfg(), testPriority, nil)

	raw := []types.RawResult{{
		Title:    "Belajar berhitung SD",
		URL:      "https://video.example.net/watch/33",
		Provider: "brave",
	}}
	_, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)

	require.Len(t, kb.observed, 1)
	assert.Equal(t, "grade/Grade 1=sd kelas 1", kb.observed[0])
}

func TestScoreOrderingDeterministic(t *testing.T) {
	mc := &mockCompleter{reply: func(req genai.Request) (string, error) {
		return `{"grade": "", "subject": "", "score": 5, "reason": "middling"}`, nil
	}}
	s := New(mc, &fakeKB{}, testScoringCfg(), testPriority, nil)

	raw := []types.RawResult{
		{Title: "B result", URL: "https://a.example.net/1", Provider: "brave"},
		{Title: "A result", URL: "https://a.example.net/2", Provider: "brave"},
		{Title: "C result", URL: "https://a.example.net/3", Provider: "youtube"},
	}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Equal scores: provider rank first (youtube before brave), then title.
	assert.Equal(t, "C result", results[0].Title)
	assert.Equal(t, "A result", results[1].Title)
	assert.Equal(t, "B result", results[2].Title)
}

func TestScoreSelectionFloor(t *testing.T) {
	mc := &mockCompleter{reply: func(req genai.Request) (string, error) {
		if strings.Contains(req.User, "high quality") {
			return `{"grade": "", "subject": "", "score": 8, "reason": "x"}`, nil
		}
		return `{"grade": "", "subject": "", "score": 3, "reason": "x"}`, nil
	}}
	s := New(mc, &fakeKB{}, testScoringCfg(), testPriority, nil)

	raw := []types.RawResult{
		{Title: "high quality course", URL: "https://a.example.net/h", Provider: "brave"},
		{Title: "low quality clip", URL: "https://a.example.net/l", Provider: "brave"},
	}
	results, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Selected)
	assert.False(t, results[1].Selected)
}

func TestScoreConcurrencyBounded(t *testing.T) {
	mc := &mockCompleter{}
	cfg := testScoringCfg()
	cfg.LLMConcurrency = 2
	s := New(mc, &fakeKB{}, cfg, testPriority, nil)

	raw := make([]types.RawResult, 12)
	for i := range raw {
		raw[i] = types.RawResult{
			Title:    fmt.Sprintf("result %d", i),
			URL:      fmt.Sprintf("https://a.example.net/%d", i),
			Provider: "brave",
		}
	}
	_, err := s.Score(context.Background(), indonesiaReq, types.Strategy{}, raw)
	require.NoError(t, err)

	assert.Equal(t, 12, mc.callCount())
	assert.LessOrEqual(t, mc.maxInFlight.Load(), int32(2))
}

func TestLLMConcurrencyResolution(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		want       int
	}{
		{"zero uses the default", 0, 5},
		{"explicit value kept", 2, 2},
		{"capped at the bound", 9, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testScoringCfg()
			cfg.LLMConcurrency = tt.configured
			s := New(&mockCompleter{}, &fakeKB{}, cfg, testPriority, nil)
			assert.Equal(t, tt.want, s.llmConcurrency())
		})
	}
}

func TestRuleEngagementBonus(t *testing.T) {
	rc := newRuleContext(indonesiaReq, query.LanguageFor("ID"), nil, testScoringCfg(), types.Strategy{}, nil)

	r := types.RawResult{Title: "Matematika kelas 1", URL: "https://obscure.example.net/v"}
	base := rc.evaluate(r)

	r.Views = 250_000
	popular := rc.evaluate(r)
	assert.InDelta(t, base.score+0.5, popular.score, 1e-9)
	assert.Contains(t, popular.reasons, "strong engagement")

	r.Views = 0
	r.Likes = 800
	liked := rc.evaluate(r)
	assert.InDelta(t, base.score+0.5, liked.score, 1e-9)
}

func TestRuleRelaxedTrustDropsPenalty(t *testing.T) {
	cfg := testScoringCfg()
	req := indonesiaReq
	record := &types.KnowledgeRecord{Country: "ID"}

	r := types.RawResult{
		Title:   "Matematika kelas 1",
		URL:     "https://obscure.example.net/video",
		Snippet: "pelajaran matematika",
	}
	strict := newRuleContext(req, query.LanguageFor("ID"), record, cfg, types.Strategy{}, nil)
	relaxed := newRuleContext(req, query.LanguageFor("ID"), record, cfg, types.Strategy{RelaxedTrust: true}, nil)

	assert.Greater(t, relaxed.evaluate(r).score, strict.evaluate(r).score)
}

func TestRuleValidatedVariantMatchesGrade(t *testing.T) {
	record := &types.KnowledgeRecord{
		Country: "TH",
		GradeExpressions: map[string][]types.Expression{
			"Grade 1": {{Text: "ป.1", Confidence: 0.75}},
		},
	}
	req := types.SearchRequest{Country: "TH", Grade: "Grade 1", Subject: "Mathematics"}
	kb := &fakeKB{}
	rc := newRuleContext(req, query.LanguageFor("TH"), record, testScoringCfg(), types.Strategy{},
		func(kind knowledge.ExpressionKind, canonical, variant string) bool {
			return kb.Validated(record, kind, canonical, variant)
		})

	out := rc.evaluate(types.RawResult{
		Title: "คณิตศาสตร์ ป.1 เทอม 1",
		URL:   "https://www.youtube.com/watch?v=abc",
	})
	assert.Equal(t, "ป.1", out.identifiedGrade)
}
