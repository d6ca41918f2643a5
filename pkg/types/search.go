// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the eduscout pipeline.
// Implements: prd002-provider-clients (RawResult, R1.2);
//
//	prd004-search-orchestration (SearchRequest, R1.1);
//	prd006-scoring (SearchResult, R2.1-R2.6);
//	prd007-quality (QualityReport, R1.1-R1.4);
//	prd008-optimization (OptimizationPlan, R2.1-R2.3).
//
// See docs/ARCHITECTURE § Data Model.
package types

// SearchRequest describes one educational-video search. Immutable per
// invocation (prd004 R1.1).
type SearchRequest struct {
	// Country is an ISO 3166-1 alpha-2 code (e.g. "ID", "VN") selecting
	// the target market and therefore the query language.
	Country string `json:"country" yaml:"country"`

	// Grade is the caller's grade label (e.g. "Grade 1").
	Grade string `json:"grade" yaml:"grade"`

	// Subject is the caller's subject label (e.g. "Mathematics").
	Subject string `json:"subject" yaml:"subject"`

	// Semester optionally narrows the request (e.g. "Semester 2").
	Semester string `json:"semester,omitempty" yaml:"semester,omitempty"`

	// ResourceType optionally restricts results ("playlist", "video").
	ResourceType string `json:"resource_type,omitempty" yaml:"resource_type,omitempty"`
}

// RawResult is a single hit as returned by a provider client, before
// scoring (prd002 R1.2). Title and Snippet are in whatever language the
// provider returned them.
type RawResult struct {
	Title    string `json:"title" yaml:"title"`
	URL      string `json:"url" yaml:"url"`
	Snippet  string `json:"snippet" yaml:"snippet"`
	Provider string `json:"provider" yaml:"provider"`

	// Views and Likes are engagement counts filled in by the enrichment
	// collaborator when one is configured; zero means unknown.
	Views int64 `json:"views,omitempty" yaml:"views,omitempty"`
	Likes int64 `json:"likes,omitempty" yaml:"likes,omitempty"`
}

// EvaluationMethod records which scoring stage produced a result's final
// score (prd006 R2.4).
type EvaluationMethod string

const (
	// EvalRule means the deterministic rule stage was terminal.
	EvalRule EvaluationMethod = "rule"

	// EvalLLM means the generative stage produced the score.
	EvalLLM EvaluationMethod = "llm"

	// EvalLLMKB means the generative score was reconciled against the
	// market knowledge record.
	EvalLLMKB EvaluationMethod = "llm+kb"
)

// SearchResult is a scored, enriched video resource. The canonical URL is
// the identity key: no two results in a response share one (prd004 R3.1).
// Immutable once the final score is assigned (prd006 R2.6).
type SearchResult struct {
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Snippet string `json:"snippet" yaml:"snippet"`

	// SourceProvider names the provider that first returned this URL.
	SourceProvider string `json:"source_provider" yaml:"source_provider"`

	// Score is the relevance score in [0,10] (prd006 R2.2).
	Score float64 `json:"score" yaml:"score"`

	// Reason is a short human-readable justification for the score.
	Reason string `json:"recommendation_reason" yaml:"recommendation_reason"`

	// IdentifiedGrade is the grade the resource actually targets, as
	// extracted during scoring, in the resource's own language.
	IdentifiedGrade string `json:"identified_grade" yaml:"identified_grade"`

	// IdentifiedSubject is the subject the resource actually covers.
	IdentifiedSubject string `json:"identified_subject" yaml:"identified_subject"`

	// Method records the terminal scoring stage.
	Method EvaluationMethod `json:"evaluation_method" yaml:"evaluation_method"`

	// Selected marks results recommended to the caller.
	Selected bool `json:"is_selected" yaml:"is_selected"`
}

// Response is the produced interface payload (prd009 R1.1).
type Response struct {
	Results []SearchResult `json:"results" yaml:"results"`
	Quality QualityReport  `json:"quality_report" yaml:"quality_report"`

	// OptimizationApplied reports whether an optimization re-run replaced
	// the original result set.
	OptimizationApplied bool `json:"optimization_applied" yaml:"optimization_applied"`

	// Incomplete is set when the overall request timeout fired and partial
	// work was surfaced instead of a full pipeline pass (prd009 R4.2).
	Incomplete bool `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`

	// Message explains empty or incomplete responses.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}
