// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scorer

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdiddy/eduscout/internal/knowledge"
	"github.com/pdiddy/eduscout/internal/query"
	"github.com/pdiddy/eduscout/pkg/types"
)

// Engagement counts at or above these floors earn the popularity bonus.
const (
	engagementViewsFloor = 10_000
	engagementLikesFloor = 500
)

// ruleOutcome is the rule stage's verdict for one result.
type ruleOutcome struct {
	score float64
	// terminal marks a high-confidence match: unambiguous grade and
	// subject keywords on a trusted domain. The generative stage is
	// skipped for terminal results (R1.4).
	terminal bool
	// gradeConflict is set when the text names a different grade number
	// than the request; conflictText holds the phrase that names it.
	// Used by reconciliation as the rule's verdict.
	gradeConflict bool
	conflictText  string
	reasons       []string
	// identifiedGrade/Subject hold the rule stage's own extraction when
	// it found an unambiguous match.
	identifiedGrade   string
	identifiedSubject string
}

// gradeWords are per-language tokens that precede or follow a grade
// number. The knowledge record's validated variants extend this at
// runtime; this seed list only bootstraps markets with no history yet.
var gradeWords = map[string][]string{
	"id":  {"kelas"},
	"ms":  {"darjah", "tingkatan"},
	"vi":  {"lớp", "lop"},
	"th":  {"ป.", "ม."},
	"fil": {"baitang", "grade"},
	"hi":  {"कक्षा", "class"},
	"ur":  {"جماعت", "class"},
	"bn":  {"শ্রেণী", "class"},
	"ar":  {"الصف", "صف"},
	"pt":  {"ano", "série", "serie"},
	"es":  {"grado", "curso"},
	"tr":  {"sınıf", "sinif"},
	"ru":  {"класс"},
	"zh":  {"年级", "年級"},
	"ja":  {"年生", "学年"},
	"ko":  {"학년"},
	"sw":  {"darasa"},
	"en":  {"grade", "class", "year"},
}

// courseWords mark full-course or playlist phrasing per language.
var courseWords = map[string][]string{
	"id":  {"kursus lengkap", "lengkap", "playlist", "semua episode"},
	"ms":  {"kursus penuh", "playlist"},
	"vi":  {"khóa học", "đầy đủ", "playlist", "trọn bộ"},
	"th":  {"คอร์สเต็ม", "เพลย์ลิสต์"},
	"fil": {"buong kurso", "playlist"},
	"hi":  {"पूरा कोर्स", "playlist"},
	"ar":  {"دورة كاملة", "قائمة تشغيل"},
	"pt":  {"curso completo", "playlist"},
	"es":  {"curso completo", "playlist"},
	"tr":  {"tam kurs", "oynatma listesi", "playlist"},
	"ru":  {"полный курс", "плейлист"},
	"zh":  {"全套课程", "合集", "播放列表"},
	"ja":  {"全講座", "再生リスト"},
	"ko":  {"전체 강좌", "재생목록"},
	"en":  {"full course", "complete course", "playlist", "all lessons"},
}

var digitRe = regexp.MustCompile(`\d+`)

// playlistURLMarkers identify playlist-shaped URLs regardless of language.
var playlistURLMarkers = []string{"playlist", "list=", "/course", "/kursus", "/khoa-hoc"}

// richnessRe matches item-count markers like "40 video" or "32 bài".
var richnessRe = regexp.MustCompile(`\b\d{2,3}\s*(video|episode|bài|bagian|parts?|lessons?|讲|课|강)\b`)

// ruleContext carries the per-request inputs the rule stage needs.
type ruleContext struct {
	req          types.SearchRequest
	lang         query.Language
	record       *types.KnowledgeRecord
	trusted      map[string]bool
	relaxedTrust bool
	gradeNumber  string
	terminalAt   float64

	// validated reports whether a knowledge-record variant has reached
	// the confidence bar for the rule stage to act on it.
	validated func(kind knowledge.ExpressionKind, canonical, variant string) bool
}

func newRuleContext(req types.SearchRequest, lang query.Language, record *types.KnowledgeRecord, cfg types.ScoringConfig, strategy types.Strategy, validated func(kind knowledge.ExpressionKind, canonical, variant string) bool) *ruleContext {
	trusted := make(map[string]bool, len(cfg.TrustedDomains))
	for _, d := range cfg.TrustedDomains {
		trusted[strings.ToLower(d)] = true
	}
	terminalAt := cfg.RuleTerminalScore
	if terminalAt <= 0 {
		terminalAt = 8.0
	}
	if validated == nil {
		validated = func(knowledge.ExpressionKind, string, string) bool { return false }
	}
	return &ruleContext{
		req:          req,
		lang:         lang,
		record:       record,
		trusted:      trusted,
		relaxedTrust: strategy.RelaxedTrust,
		gradeNumber:  firstNumber(req.Grade),
		terminalAt:   terminalAt,
		validated:    validated,
	}
}

// evaluate runs the deterministic rule stage over one raw result (R1).
func (rc *ruleContext) evaluate(r types.RawResult) ruleOutcome {
	text := strings.ToLower(r.Title + " " + r.Snippet)
	var out ruleOutcome
	score := 0.0

	if strings.HasPrefix(strings.ToLower(r.URL), "https://") {
		score += 0.5
	}

	trustedDomain := rc.isTrusted(r.URL)
	if trustedDomain {
		score += 2.0
		out.reasons = append(out.reasons, "trusted domain")
	} else if !rc.relaxedTrust {
		score -= 0.5
	}

	if rc.scriptMatches(r.Title) {
		score += 1.0
	} else {
		out.reasons = append(out.reasons, "script mismatch")
		score -= 1.0
	}

	gradeMatch, gradeConflict, gradeText := rc.gradeEvidence(text)
	switch {
	case gradeMatch:
		score += 3.0
		out.identifiedGrade = gradeText
		out.reasons = append(out.reasons, "grade match")
	case gradeConflict:
		// The text names a different grade: a false match is worse than
		// no match (prd006 R1.3).
		score -= 3.0
		out.gradeConflict = true
		out.conflictText = gradeText
		out.reasons = append(out.reasons, fmt.Sprintf("grade mismatch (%s)", gradeText))
	}

	if subjectText, ok := rc.subjectEvidence(text); ok {
		score += 2.5
		out.identifiedSubject = subjectText
		out.reasons = append(out.reasons, "subject match")
	}

	if rc.playlistRich(r, text) {
		score += 1.5
		out.reasons = append(out.reasons, "playlist richness")
	}

	if r.Views >= engagementViewsFloor || r.Likes >= engagementLikesFloor {
		score += 0.5
		out.reasons = append(out.reasons, "strong engagement")
	}

	out.score = clampScore(score)
	out.terminal = trustedDomain && gradeMatch && out.identifiedSubject != "" && out.score >= rc.terminalAt
	return out
}

func (rc *ruleContext) isTrusted(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if rc.trusted[host] {
		return true
	}
	// Subdomains of a trusted domain are trusted.
	for d := range rc.trusted {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// scriptMatches checks that the title's dominant script is the market's
// expected one. Titles with no letters at all fail the check.
func (rc *ruleContext) scriptMatches(title string) bool {
	expected := scriptRange(rc.lang.Script)
	if expected == nil {
		return true
	}
	letters, matching := 0, 0
	for _, r := range title {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(expected, r) {
			matching++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(matching)/float64(letters) >= 0.5
}

func scriptRange(script string) *unicode.RangeTable {
	switch script {
	case "latin":
		return unicode.Latin
	case "arabic":
		return unicode.Arabic
	case "cyrillic":
		return unicode.Cyrillic
	case "han":
		return unicode.Han
	case "thai":
		return unicode.Thai
	case "devanagari":
		return unicode.Devanagari
	case "bengali":
		return unicode.Bengali
	case "hangul":
		return unicode.Hangul
	default:
		return nil
	}
}

// gradeEvidence looks for the requested grade in the text: either a
// validated knowledge-record variant, or a per-language grade word next
// to the right number. A grade word next to a different number is a
// conflict.
func (rc *ruleContext) gradeEvidence(text string) (match, conflict bool, found string) {
	// Validated variants from the knowledge record come first: they are
	// the self-correcting path that needs no hand-written parser (R2.3).
	if rc.record != nil {
		for _, expr := range rc.record.GradeExpressions[rc.req.Grade] {
			if rc.validated(knowledge.KindGrade, rc.req.Grade, expr.Text) && strings.Contains(text, strings.ToLower(expr.Text)) {
				return true, false, expr.Text
			}
		}
	}

	words := append([]string{}, gradeWords[rc.lang.Code]...)
	if rc.lang.Code != "en" {
		words = append(words, gradeWords["en"]...)
	}
	for _, w := range words {
		idx := strings.Index(text, w)
		if idx < 0 {
			continue
		}
		// Inspect the numbers near the grade word.
		window := text[max(0, idx-8):min(len(text), idx+len(w)+8)]
		nums := digitRe.FindAllString(window, -1)
		for _, n := range nums {
			if n == rc.gradeNumber {
				return true, false, strings.TrimSpace(w + " " + n)
			}
		}
		if len(nums) > 0 && rc.gradeNumber != "" {
			conflict = true
			found = strings.TrimSpace(w + " " + nums[0])
		}
	}
	return false, conflict, found
}

// subjectEvidence looks for the requested subject: a validated local
// variant, or the English canonical term itself.
func (rc *ruleContext) subjectEvidence(text string) (string, bool) {
	if rc.record != nil {
		for _, expr := range rc.record.SubjectExpressions[rc.req.Subject] {
			if rc.validated(knowledge.KindSubject, rc.req.Subject, expr.Text) && strings.Contains(text, strings.ToLower(expr.Text)) {
				return expr.Text, true
			}
		}
	}
	canonical := strings.ToLower(rc.req.Subject)
	if canonical != "" && strings.Contains(text, canonical) {
		return rc.req.Subject, true
	}
	// Common international roots ("matematika"/"matemática"/"math").
	if root := subjectRoot(canonical); root != "" && strings.Contains(text, root) {
		return root, true
	}
	return "", false
}

// subjectRoot maps a canonical subject to a cross-language stem.
func subjectRoot(subject string) string {
	switch {
	case strings.HasPrefix(subject, "math"):
		return "matematik" // id/ms/tr share the stem; "matemática" differs only by accent
	case strings.HasPrefix(subject, "phys"):
		return "fisika"
	case strings.HasPrefix(subject, "chem"):
		return "kimia"
	case strings.HasPrefix(subject, "biol"):
		return "biologi"
	default:
		return ""
	}
}

// playlistRich detects playlist/full-course shape: a playlist URL, local
// course vocabulary, or an item-count marker (R1.5).
func (rc *ruleContext) playlistRich(r types.RawResult, text string) bool {
	lowURL := strings.ToLower(r.URL)
	for _, m := range playlistURLMarkers {
		if strings.Contains(lowURL, m) {
			return true
		}
	}
	words := append([]string{}, courseWords[rc.lang.Code]...)
	words = append(words, courseWords["en"]...)
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return richnessRe.MatchString(text)
}

// firstNumber extracts the first integer in a label ("Grade 1" → "1").
func firstNumber(s string) string {
	return digitRe.FindString(s)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
