// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality derives an aggregate quality report from one scored
// result set. The report is purely descriptive: it mutates nothing and
// is the signal the optimization stage keys off. See prd007-quality.
package quality

import (
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/eduscout/pkg/types"
)

// Default thresholds applied when the corresponding config value is zero.
const (
	defaultHighQualityFloor  = 7.0
	defaultAvgScoreFloor     = 5.0
	defaultMinResults        = 3
	defaultQualityRatioFloor = 0.3
	defaultVarianceCeiling   = 8.0
)

// Evaluator computes quality reports for scored result sets.
type Evaluator struct {
	cfg types.QualityConfig
}

func NewEvaluator(cfg types.QualityConfig) *Evaluator {
	if cfg.AvgWeight == 0 && cfg.RatioWeight == 0 && cfg.MedianWeight == 0 {
		cfg.AvgWeight, cfg.RatioWeight, cfg.MedianWeight = 0.5, 0.3, 0.2
	}
	if cfg.HighQualityFloor <= 0 {
		cfg.HighQualityFloor = defaultHighQualityFloor
	}
	if cfg.AvgScoreFloor <= 0 {
		cfg.AvgScoreFloor = defaultAvgScoreFloor
	}
	if cfg.MinResults <= 0 {
		cfg.MinResults = defaultMinResults
	}
	if cfg.QualityRatioFloor <= 0 {
		cfg.QualityRatioFloor = defaultQualityRatioFloor
	}
	if cfg.VarianceCeiling <= 0 {
		cfg.VarianceCeiling = defaultVarianceCeiling
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate produces the report for one scored result set (R1, R2).
// An empty set reports overall 0, level poor, with the few-results
// anomaly.
func (e *Evaluator) Evaluate(results []types.SearchResult) types.QualityReport {
	report := types.QualityReport{ResultCount: len(results)}

	if len(results) == 0 {
		report.Level = types.QualityPoor
		report.Anomalies = []types.Anomaly{types.AnomalyFewResults}
		return report
	}

	scores := make([]float64, len(results))
	var sum float64
	highQuality := 0
	playlists := 0
	for i, r := range results {
		scores[i] = r.Score
		sum += r.Score
		if r.Score >= e.cfg.HighQualityFloor {
			highQuality++
		}
		if looksLikePlaylist(r) {
			playlists++
		}
	}
	n := float64(len(results))
	avg := sum / n
	ratio := float64(highQuality) / n
	med := median(scores)

	report.AvgScore = avg
	report.PlaylistRatio = float64(playlists) / n

	// Per-result scores live on a 0-10 scale; the overall blend is
	// reported on 0-100 (R1.2).
	overall := (e.cfg.AvgWeight*avg + e.cfg.RatioWeight*ratio*10 + e.cfg.MedianWeight*med) * 10
	report.Overall = math.Min(100, math.Max(0, overall))
	report.Level = level(report.Overall)

	if avg < e.cfg.AvgScoreFloor {
		report.Anomalies = append(report.Anomalies, types.AnomalyLowAverage)
	}
	if len(results) < e.cfg.MinResults {
		report.Anomalies = append(report.Anomalies, types.AnomalyFewResults)
	}
	if ratio < e.cfg.QualityRatioFloor {
		report.Anomalies = append(report.Anomalies, types.AnomalyLowQualityRatio)
	}
	if variance(scores, avg) > e.cfg.VarianceCeiling {
		report.Anomalies = append(report.Anomalies, types.AnomalyHighVariance)
	}
	return report
}

func level(overall float64) types.QualityLevel {
	switch {
	case overall >= 80:
		return types.QualityExcellent
	case overall >= 60:
		return types.QualityGood
	case overall >= 40:
		return types.QualityFair
	default:
		return types.QualityPoor
	}
}

func median(scores []float64) float64 {
	s := make([]float64, len(scores))
	copy(s, scores)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func variance(scores []float64, mean float64) float64 {
	var sum float64
	for _, s := range scores {
		d := s - mean
		sum += d * d
	}
	return sum / float64(len(scores))
}

// playlistMarkers mirror the rule stage's playlist detection, applied
// to already-scored results.
var playlistMarkers = []string{"playlist", "list=", "/course", "full course", "complete course", "kursus lengkap", "lengkap", "khóa học", "trọn bộ"}

func looksLikePlaylist(r types.SearchResult) bool {
	text := strings.ToLower(r.URL + " " + r.Title + " " + r.Snippet)
	for _, m := range playlistMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
