// Package critique は、絵コンテの品質ゲートを構成するレビュワー群と
// 批評→書き換えの収束ループを実装します。
package critique

import (
	"fmt"
	"math"
	"strings"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

// Context はレビュワー間で共有する読み取り専用の批評文脈です。
type Context struct {
	ExpectedKeyPoints []string
	Misconceptions    []string
	AudienceLevel     string
}

// Reviewer は (storyboard, context) の純粋関数です。共有可変状態を
// 持たないため、同一スナップショットに対して並列実行できます。
type Reviewer func(storyboard *domain.Storyboard, rc Context) domain.ReviewerCritique

var technicalTerms = []string{
	"tradeoff", "estimate", "exploration", "exploitation", "policy",
	"gradient", "consistency", "throughput", "latency", "value", "reward",
}

var beginnerJargon = []string{
	"stochastic", "bellman", "eigenvector", "backprop",
	"liveness", "quorum", "idempotency",
}

const (
	captionMaxCharsPerLine = 44
	captionMaxLines        = 4
	captionHardLimit       = 280
)

func scriptCorpus(storyboard *domain.Storyboard) string {
	var parts []string
	for _, panel := range storyboard.Panels {
		parts = append(parts, panel.SceneDescription, panel.DialogueOrCaption, panel.TeachingIntent)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// tokenOverlapRatio は needle のトークンのうち corpus に現れる割合を
// 0-100 で返します。粗い被覆度の代理であり、完全一致は要求しません。
func tokenOverlapRatio(needle, corpus string) float64 {
	tokens := strings.Fields(strings.ToLower(needle))
	if len(tokens) == 0 {
		return 0
	}
	corpusTokens := map[string]bool{}
	for _, token := range strings.Fields(corpus) {
		corpusTokens[strings.Trim(token, ".,!?:;\"'()")] = true
	}
	hits := 0
	for _, token := range tokens {
		if corpusTokens[strings.Trim(token, ".,!?:;\"'()")] {
			hits++
		}
	}
	return 100 * float64(hits) / float64(len(tokens))
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}

func severityScore(issues []domain.CritiqueIssue, criticalWeight, majorWeight float64) float64 {
	score := 1.0
	for _, issue := range issues {
		switch issue.Severity {
		case domain.SeverityCritical:
			score -= criticalWeight
		case domain.SeverityMajor:
			score -= majorWeight
		}
	}
	return round4(math.Max(0, score))
}

func verdictFor(issues []domain.CritiqueIssue, failOn domain.Severity) domain.Verdict {
	for _, issue := range issues {
		if issue.Severity == domain.SeverityCritical {
			return domain.VerdictFail
		}
		if failOn == domain.SeverityMajor && issue.Severity == domain.SeverityMajor {
			return domain.VerdictFail
		}
	}
	return domain.VerdictPass
}

// TechnicalReviewer は重要ポイントの被覆と誤解への対処を検査します。
func TechnicalReviewer(storyboard *domain.Storyboard, rc Context) domain.ReviewerCritique {
	var issues []domain.CritiqueIssue
	corpus := scriptCorpus(storyboard)

	for _, point := range rc.ExpectedKeyPoints {
		if tokenOverlapRatio(point, corpus) < 45 {
			issues = append(issues, domain.CritiqueIssue{
				Reviewer:       "technical",
				Severity:       domain.SeverityCritical,
				IssueCode:      domain.IssueKeyPointMissing,
				Message:        fmt.Sprintf("Expected key point missing or too weak: '%s'", point),
				Recommendation: fmt.Sprintf("Add explicit panel teaching intent for '%s'.", point),
				Metadata:       map[string]any{"missing_key_point": point},
			})
		}
	}

	if len(rc.Misconceptions) > 0 {
		hits := 0
		for _, misconception := range rc.Misconceptions {
			if tokenOverlapRatio(misconception, corpus) > 35 {
				hits++
			}
		}
		if hits == 0 {
			issues = append(issues, domain.CritiqueIssue{
				Reviewer:       "technical",
				Severity:       domain.SeverityMajor,
				IssueCode:      domain.IssueMisconceptionUnaddressed,
				Message:        "Storyboard does not explicitly address listed misconceptions.",
				Recommendation: "Add at least one panel that debunks a common misconception.",
			})
		}
	}

	termHits := 0
	for _, term := range technicalTerms {
		if strings.Contains(corpus, term) {
			termHits++
		}
	}
	if termHits < 2 {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "technical",
			Severity:       domain.SeverityMajor,
			IssueCode:      domain.IssueRigorLow,
			Message:        "Technical rigor appears low (few concrete technical concepts).",
			Recommendation: "Add explicit tradeoff/formal concept language in teaching intents.",
		})
	}

	return domain.ReviewerCritique{
		Reviewer:   "technical",
		Verdict:    verdictFor(issues, domain.SeverityCritical),
		Score:      severityScore(issues, 0.25, 0.1),
		Confidence: 0.78,
		Summary:    "Validated technical key-point coverage and misconception handling.",
		Issues:     issues,
	}
}

// BeginnerReviewer は初心者の読みやすさとジャーゴン負荷を検査します。
func BeginnerReviewer(storyboard *domain.Storyboard, rc Context) domain.ReviewerCritique {
	var issues []domain.CritiqueIssue

	totalWords := 0
	for _, panel := range storyboard.Panels {
		totalWords += len(strings.Fields(panel.DialogueOrCaption))
	}
	avgWords := float64(totalWords) / math.Max(1, float64(len(storyboard.Panels)))
	if avgWords > 34 {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "beginner",
			Severity:       domain.SeverityMajor,
			IssueCode:      domain.IssueDialogueTooDense,
			Message:        "Dialogue is too dense for beginner reader.",
			Recommendation: "Shorten caption text and split dense ideas across panels.",
		})
	}

	jargonHits := 0
	corpus := scriptCorpus(storyboard)
	for _, token := range strings.Fields(corpus) {
		for _, jargon := range beginnerJargon {
			if strings.Trim(token, ".,!?:;") == jargon {
				jargonHits++
			}
		}
	}
	if jargonHits > 3 && rc.AudienceLevel == "beginner" {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "beginner",
			Severity:       domain.SeverityMajor,
			IssueCode:      domain.IssueJargonOverload,
			Message:        "Too much unexplained jargon for beginner audience.",
			Recommendation: "Introduce jargon only after intuitive explanation or add quick definitions.",
		})
	}

	metaphorPanels := 0
	for _, panel := range storyboard.Panels {
		if panel.MetaphorAnchor != "" {
			metaphorPanels++
		}
	}
	if metaphorPanels == 0 {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "beginner",
			Severity:       domain.SeverityMinor,
			IssueCode:      domain.IssueMissingMetaphor,
			Message:        "No metaphor anchors detected for digestibility.",
			Recommendation: "Add at least one concrete metaphor anchor in confusion/insight panels.",
		})
	}

	return domain.ReviewerCritique{
		Reviewer:   "beginner",
		Verdict:    verdictFor(issues, domain.SeverityMajor),
		Score:      round4(math.Max(0, 1.0-0.12*float64(len(issues)))),
		Confidence: 0.74,
		Summary:    "Evaluated readability, jargon burden, and metaphor support.",
		Issues:     issues,
	}
}

// FirstYearReviewer は直観と形式化の橋渡しを検査します。
func FirstYearReviewer(storyboard *domain.Storyboard, _ Context) domain.ReviewerCritique {
	var issues []domain.CritiqueIssue
	corpus := scriptCorpus(storyboard)

	hasIntuition := containsAny(corpus, "intuition", "metaphor", "imagine", "story")
	hasFormal := containsAny(corpus, "formula", "estimate", "value", "policy", "tradeoff")
	if !(hasIntuition && hasFormal) {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "first_year",
			Severity:       domain.SeverityMajor,
			IssueCode:      domain.IssueBridgeMissing,
			Message:        "Insufficient bridge between intuitive and formal explanation layers.",
			Recommendation: "Add at least one panel linking metaphor intuition to formal decision rule.",
		})
	}

	score := 0.9
	if len(issues) > 0 {
		score = 0.65
	}
	return domain.ReviewerCritique{
		Reviewer:   "first_year",
		Verdict:    verdictFor(issues, domain.SeverityMajor),
		Score:      score,
		Confidence: 0.71,
		Summary:    "Checked intuition-to-formalism bridge quality.",
		Issues:     issues,
	}
}

// PedagogyReviewer は導入→混乱→洞察→まとめの物語構造を検査します。
func PedagogyReviewer(storyboard *domain.Storyboard, _ Context) domain.ReviewerCritique {
	var issues []domain.CritiqueIssue

	if storyboard.RecapPanel != len(storyboard.Panels) {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "pedagogy",
			Severity:       domain.SeverityCritical,
			IssueCode:      domain.IssueRecapNotFinal,
			Message:        "Recap panel is not configured as the final panel.",
			Recommendation: "Ensure recap panel index is the last panel.",
		})
	}
	if len(storyboard.Panels) < 4 {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "pedagogy",
			Severity:       domain.SeverityCritical,
			IssueCode:      domain.IssuePanelCountTooLow,
			Message:        "Panel count too low for proper setup/confusion/insight/recap arc.",
			Recommendation: "Use at least 4 panels for pedagogical progression.",
		})
	}
	hasConfusion := false
	for _, panel := range storyboard.Panels {
		if strings.Contains(strings.ToLower(panel.SceneDescription), "confusion") {
			hasConfusion = true
			break
		}
	}
	if !hasConfusion {
		issues = append(issues, domain.CritiqueIssue{
			Reviewer:       "pedagogy",
			Severity:       domain.SeverityMajor,
			IssueCode:      domain.IssueConfusionMissing,
			Message:        "No explicit confusion moment detected.",
			Recommendation: "Add a panel where naive understanding fails before insight.",
		})
	}

	return domain.ReviewerCritique{
		Reviewer:   "pedagogy",
		Verdict:    verdictFor(issues, domain.SeverityCritical),
		Score:      severityScore(issues, 0.25, 0.1),
		Confidence: 0.8,
		Summary:    "Validated narrative progression for teaching effectiveness.",
		Issues:     issues,
	}
}

// VisualReviewer はキャプション密度と視覚的な読みやすさを検査します。
func VisualReviewer(storyboard *domain.Storyboard, _ Context) domain.ReviewerCritique {
	var issues []domain.CritiqueIssue

	for _, panel := range storyboard.Panels {
		if captionOverflows(panel.DialogueOrCaption, captionMaxCharsPerLine, captionMaxLines) {
			issues = append(issues, domain.CritiqueIssue{
				Reviewer:       "visual",
				Severity:       domain.SeverityMajor,
				IssueCode:      domain.IssueCaptionOverflow,
				PanelNumber:    panel.PanelNumber,
				Message:        "Caption overflow risk detected for panel.",
				Recommendation: "Reduce caption length or split into two panels.",
			})
		}
		if len(panel.DialogueOrCaption) > captionHardLimit {
			issues = append(issues, domain.CritiqueIssue{
				Reviewer:       "visual",
				Severity:       domain.SeverityMajor,
				IssueCode:      domain.IssueCaptionTooLong,
				PanelNumber:    panel.PanelNumber,
				Message:        "Caption too long for readable comic panel.",
				Recommendation: "Keep panel dialogue concise and focused.",
			})
		}
	}

	return domain.ReviewerCritique{
		Reviewer:   "visual",
		Verdict:    verdictFor(issues, domain.SeverityMajor),
		Score:      round4(math.Max(0, 1.0-0.1*float64(len(issues)))),
		Confidence: 0.77,
		Summary:    "Checked caption density and readability safety constraints.",
		Issues:     issues,
	}
}

// captionOverflows は単語単位の折り返しで必要行数を数え、
// 行数超過または1行に収まらない語があれば true を返します。
func captionOverflows(text string, maxCharsPerLine, maxLines int) bool {
	words := strings.Fields(text)
	lines := 1
	lineLen := 0
	for _, word := range words {
		if len(word) > maxCharsPerLine {
			return true
		}
		needed := len(word)
		if lineLen > 0 {
			needed++ // 前の語との区切りスペース
		}
		if lineLen+needed > maxCharsPerLine {
			lines++
			lineLen = len(word)
		} else {
			lineLen += needed
		}
	}
	return lines > maxLines
}

func containsAny(corpus string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(corpus, token) {
			return true
		}
	}
	return false
}
