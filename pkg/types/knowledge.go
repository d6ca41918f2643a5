// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Expression is a validated local-language phrasing of a grade or subject,
// with an accumulating confidence. Per prd005-market-knowledge R1.2.
type Expression struct {
	// Text is the local-language variant (e.g. "kelas 1" for Grade 1 in
	// Indonesian).
	Text string `json:"text" yaml:"text"`

	// Confidence is in [0,1]. Starts low for novel variants and grows as
	// the variant is re-observed.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Observations counts how many times the variant has been seen.
	Observations int `json:"observations" yaml:"observations"`
}

// MistakeSeverity grades a recorded scoring-model mistake.
type MistakeSeverity string

const (
	SeverityMinor    MistakeSeverity = "minor"
	SeverityModerate MistakeSeverity = "moderate"
	SeverityCritical MistakeSeverity = "critical"
)

// Mistake records one observed scoring-model error for a market, so the
// reconciliation stage can override a recurrence (prd005 R2.1, prd006 R4.2).
// The mistakes list is append-only: entries are never deleted or edited.
type Mistake struct {
	// Example is the model output that was wrong (e.g. a grade extraction).
	Example string `json:"example" yaml:"example"`

	// Correction is what the rule stage determined instead.
	Correction string `json:"correction" yaml:"correction"`

	Severity   MistakeSeverity `json:"severity" yaml:"severity"`
	RecordedAt time.Time       `json:"recorded_at" yaml:"recorded_at"`
}

// KnowledgeRecord is the per-country ledger of validated local phrasings
// and recorded model mistakes. One record exists per country, created on
// the first search for that market; it only grows (prd005 R1.1, R3.1).
type KnowledgeRecord struct {
	Country string `json:"country" yaml:"country"`

	// GradeExpressions maps a canonical grade label to its known local
	// variants.
	GradeExpressions map[string][]Expression `json:"grade_expressions" yaml:"grade_expressions"`

	// SubjectExpressions maps a canonical subject label to its known
	// local variants.
	SubjectExpressions map[string][]Expression `json:"subject_expressions" yaml:"subject_expressions"`

	// Mistakes is the append-only list of recorded model errors.
	Mistakes []Mistake `json:"recorded_mistakes" yaml:"recorded_mistakes"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// VariantCount returns the total number of known grade and subject
// variants, used to check monotonic growth.
func (r *KnowledgeRecord) VariantCount() int {
	n := 0
	for _, exprs := range r.GradeExpressions {
		n += len(exprs)
	}
	for _, exprs := range r.SubjectExpressions {
		n += len(exprs)
	}
	return n
}
