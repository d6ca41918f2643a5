// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// QualityLevel buckets an overall quality score. Per prd007-quality R1.3.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
)

// Anomaly names a quality defect detected in a scored result set.
// Per prd007-quality R2.1-R2.4.
type Anomaly string

const (
	// AnomalyLowAverage fires when the average score falls below the
	// configured floor.
	AnomalyLowAverage Anomaly = "low_average_score"

	// AnomalyFewResults fires when the result count falls below the
	// configured minimum.
	AnomalyFewResults Anomaly = "few_results"

	// AnomalyLowQualityRatio fires when the high-quality-result ratio
	// falls below the configured floor.
	AnomalyLowQualityRatio Anomaly = "low_quality_ratio"

	// AnomalyHighVariance fires when the score variance exceeds the
	// configured ceiling.
	AnomalyHighVariance Anomaly = "high_score_variance"
)

// QualityReport aggregates statistics over one scored result set.
// Derived and read-only (prd007 R1.1).
type QualityReport struct {
	// Overall is the weighted blend score in [0,100].
	Overall float64 `json:"overall_score" yaml:"overall_score"`

	// Level buckets Overall for human consumption.
	Level QualityLevel `json:"level" yaml:"level"`

	// ResultCount is the number of results evaluated.
	ResultCount int `json:"result_count" yaml:"result_count"`

	// AvgScore is the mean per-result score.
	AvgScore float64 `json:"avg_score" yaml:"avg_score"`

	// PlaylistRatio is the fraction of results that look like playlists
	// or full courses rather than single videos.
	PlaylistRatio float64 `json:"playlist_ratio" yaml:"playlist_ratio"`

	// Anomalies lists the triggered anomaly conditions, if any.
	Anomalies []Anomaly `json:"anomalies,omitempty" yaml:"anomalies,omitempty"`
}

// Anomalous reports whether any anomaly condition fired.
func (r QualityReport) Anomalous() bool {
	return len(r.Anomalies) > 0
}

// StrategyKind names an alternative search strategy. Per prd008-optimization R2.2.
type StrategyKind string

const (
	// StrategyLocalizedKeywords strengthens the localized "full course"
	// and "playlist" vocabulary in generated queries.
	StrategyLocalizedKeywords StrategyKind = "localized_keywords"

	// StrategyBroaderProviders widens the provider set beyond the
	// language-family default.
	StrategyBroaderProviders StrategyKind = "broader_providers"

	// StrategyRelaxedTrust relaxes trusted-domain gating in rule scoring.
	StrategyRelaxedTrust StrategyKind = "relaxed_trust"

	// StrategyCombined applies all of the above together.
	StrategyCombined StrategyKind = "combined"
)

// RiskLevel grades the downside of executing an optimization plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// OptimizationPlan is a proposed alternative search strategy, created on
// anomaly and consumed by an approval step before execution (prd008 R2.1).
type OptimizationPlan struct {
	ID          string       `json:"id" yaml:"id"`
	Kind        StrategyKind `json:"strategy_kind" yaml:"strategy_kind"`
	Description string       `json:"description" yaml:"description"`

	// ExpectedImprovement estimates the overall-score gain in [0,100].
	ExpectedImprovement float64 `json:"expected_improvement" yaml:"expected_improvement"`

	Risk RiskLevel `json:"risk_level" yaml:"risk_level"`
}
