// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Strategy adjusts how one search pass runs. The zero value is the
// default pass; the optimization stage re-runs the pipeline with a
// non-zero strategy derived from an approved plan (prd008 R4.1).
type Strategy struct {
	// BoostLocalizedKeywords appends the market's strongest "full course"
	// vocabulary to every generated query.
	BoostLocalizedKeywords bool `json:"boost_localized_keywords" yaml:"boost_localized_keywords"`

	// BroadenProviders fans out to every enabled provider instead of the
	// top-priority subset.
	BroadenProviders bool `json:"broaden_providers" yaml:"broaden_providers"`

	// RelaxedTrust lets rule scoring accept results from domains outside
	// the trusted list without the distrust penalty.
	RelaxedTrust bool `json:"relaxed_trust" yaml:"relaxed_trust"`
}

// StrategyFor maps a plan kind to the pass adjustments it implies.
func StrategyFor(kind StrategyKind) Strategy {
	switch kind {
	case StrategyLocalizedKeywords:
		return Strategy{BoostLocalizedKeywords: true}
	case StrategyBroaderProviders:
		return Strategy{BroadenProviders: true}
	case StrategyRelaxedTrust:
		return Strategy{RelaxedTrust: true}
	case StrategyCombined:
		return Strategy{BoostLocalizedKeywords: true, BroadenProviders: true, RelaxedTrust: true}
	default:
		return Strategy{}
	}
}
