// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query builds localized search queries for a market.
// Implements: prd001-query-generation (R1-R4);
//
//	docs/ARCHITECTURE § Query Generation.
package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/eduscout/internal/genai"
	"github.com/pdiddy/eduscout/pkg/types"
)

// Language describes a market's query language.
type Language struct {
	// Code is the BCP-47 primary subtag (e.g. "id").
	Code string

	// Name is the English language name used in model instructions.
	Name string

	// Script is the dominant script ("latin", "arabic", "cyrillic",
	// "han", "thai", "devanagari"). Used by rule scoring's alphabet check.
	Script string
}

// countryLanguages maps ISO country codes to their dominant instruction
// language (R1.1). Extend via configuration overrides, not by editing
// call sites.
var countryLanguages = map[string]Language{
	"ID": {Code: "id", Name: "Indonesian", Script: "latin"},
	"MY": {Code: "ms", Name: "Malay", Script: "latin"},
	"VN": {Code: "vi", Name: "Vietnamese", Script: "latin"},
	"TH": {Code: "th", Name: "Thai", Script: "thai"},
	"PH": {Code: "fil", Name: "Filipino", Script: "latin"},
	"IN": {Code: "hi", Name: "Hindi", Script: "devanagari"},
	"PK": {Code: "ur", Name: "Urdu", Script: "arabic"},
	"BD": {Code: "bn", Name: "Bengali", Script: "bengali"},
	"EG": {Code: "ar", Name: "Arabic", Script: "arabic"},
	"SA": {Code: "ar", Name: "Arabic", Script: "arabic"},
	"BR": {Code: "pt", Name: "Portuguese", Script: "latin"},
	"MX": {Code: "es", Name: "Spanish", Script: "latin"},
	"TR": {Code: "tr", Name: "Turkish", Script: "latin"},
	"RU": {Code: "ru", Name: "Russian", Script: "cyrillic"},
	"CN": {Code: "zh", Name: "Chinese", Script: "han"},
	"TW": {Code: "zh", Name: "Chinese", Script: "han"},
	"JP": {Code: "ja", Name: "Japanese", Script: "han"},
	"KR": {Code: "ko", Name: "Korean", Script: "hangul"},
	"US": {Code: "en", Name: "English", Script: "latin"},
	"GB": {Code: "en", Name: "English", Script: "latin"},
	"NG": {Code: "en", Name: "English", Script: "latin"},
	"KE": {Code: "sw", Name: "Swahili", Script: "latin"},
}

// fallbackLanguage is used for countries absent from the lookup.
var fallbackLanguage = Language{Code: "en", Name: "English", Script: "latin"}

// LanguageFor returns the query language for a country code (R1.1).
func LanguageFor(country string) Language {
	if lang, ok := countryLanguages[strings.ToUpper(country)]; ok {
		return lang
	}
	return fallbackLanguage
}

// Completer is the generative capability the generator consumes. The
// genai.Chain satisfies it; tests supply a mock.
type Completer interface {
	Complete(ctx context.Context, req genai.Request) (string, error)
}

// Generator builds localized query strings from a request. It is a pure
// function of the request and configuration: no state is kept between
// calls (R4.1).
type Generator struct {
	completer Completer
	cfg       types.QueryConfig
	ai        types.GenAIConfig
	logger    *zap.Logger
}

// NewGenerator wires a query generator. completer may be nil, in which
// case only the deterministic template path runs.
func NewGenerator(completer Completer, cfg types.QueryConfig, ai types.GenAIConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{completer: completer, cfg: cfg, ai: ai, logger: logger}
}

// systemInstruction names the target language and the platform vocabulary
// the model should prefer (R2.2).
const systemInstruction = `You generate video search queries for educational content.
Write every query in %s. Prefer the local platform vocabulary for
"full course" and "playlist". Output one query per line, nothing else.
No numbering, no quotes, no commentary.`

// Generate returns 1..MaxQueries localized query strings (R2.1). On any
// generative failure (call error, timeout, empty or degenerate output) it
// falls back to the deterministic template (R3.1-R3.3).
func (g *Generator) Generate(ctx context.Context, req types.SearchRequest) []string {
	lang := LanguageFor(req.Country)
	maxQueries := g.cfg.MaxQueries
	if maxQueries <= 0 {
		maxQueries = 3
	}

	if g.completer != nil {
		queries, err := g.generateWithModel(ctx, req, lang, maxQueries)
		if err == nil && len(queries) > 0 {
			return queries
		}
		g.logger.Warn("query generation fell back to template",
			zap.String("country", req.Country),
			zap.Error(err))
	}

	return []string{g.Template(req, lang)}
}

func (g *Generator) generateWithModel(ctx context.Context, req types.SearchRequest, lang Language, maxQueries int) ([]string, error) {
	user := fmt.Sprintf("Country: %s\nGrade: %s\nSubject: %s", req.Country, req.Grade, req.Subject)
	if req.Semester != "" {
		user += "\nSemester: " + req.Semester
	}
	if req.ResourceType != "" {
		user += "\nResource type: " + req.ResourceType
	}
	user += fmt.Sprintf("\nGenerate up to %d queries.", maxQueries)

	out, err := g.completer.Complete(ctx, genai.Request{
		System:      fmt.Sprintf(systemInstruction, lang.Name),
		User:        user,
		MaxTokens:   256,
		Temperature: g.ai.Temperature,
		PlainText:   true,
	})
	if err != nil {
		return nil, err
	}

	queries := parseQueryLines(out, maxQueries)
	if len(queries) == 0 {
		return nil, fmt.Errorf("degenerate model output: %q", truncateForLog(out))
	}
	return queries, nil
}

// Template is the deterministic fallback: subject + grade + the
// per-language localization keyword from configuration (R3.2).
func (g *Generator) Template(req types.SearchRequest, lang Language) string {
	parts := []string{req.Subject, req.Grade}
	if req.Semester != "" {
		parts = append(parts, req.Semester)
	}
	if kw, ok := g.cfg.LocalizationKeywords[lang.Code]; ok && kw != "" {
		parts = append(parts, kw)
	} else {
		parts = append(parts, "full course")
	}
	return strings.Join(parts, " ")
}

// parseQueryLines extracts clean query lines from model output. Lines
// that are empty, pure punctuation, or implausibly long are dropped.
func parseQueryLines(out string, maxQueries int) []string {
	var queries []string
	for _, line := range strings.Split(out, "\n") {
		q := strings.TrimSpace(line)
		q = strings.TrimLeft(q, "-*0123456789. ")
		q = strings.Trim(q, `"'`)
		if q == "" || len(q) > 200 {
			continue
		}
		if !containsLetter(q) {
			continue
		}
		queries = append(queries, q)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}

func containsLetter(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127 {
			return true
		}
	}
	return false
}

func truncateForLog(s string) string {
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
