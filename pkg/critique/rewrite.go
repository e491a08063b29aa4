package critique

import (
	"fmt"
	"strings"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

const (
	denseDialogueWordBudget  = 24
	overflowCaptionBudget    = 22
	rewriteMajorThreshold    = 2
	confusionMomentSentence  = "Confusion moment: naive approach fails and forces re-think."
	rigorSentence            = "Formal tradeoff terms: policy, value estimate, and exploration bonus."
	bridgeSentence           = "Bridge intuition to formalism: choose action maximizing value estimate plus uncertainty bonus."
	strongerRecapSentence    = "Final recap includes why naive strategy fails and when to apply the formal rule."
	technicalPanelValueIndex = 2
)

// ApplyTargetedRewrites は批評レポートのイシューコードに基づいて
// 決定的な書き換えを適用します。入力の絵コンテは変更せず、
// ディープコピーに対してのみ変更を加えます。
//
// 各ルールは冪等に追記します。狙いの文が既に含まれていれば no-op に
// なるため、書き換えサイクルの繰り返しは重複を蓄積せず収束します。
// 返り値の notes が空であることが「これ以上直せるものがない」という
// ループの収束シグナルです。
func ApplyTargetedRewrites(storyboard *domain.Storyboard, report domain.CritiqueReport, expectedKeyPoints, misconceptions []string) (*domain.Storyboard, []string) {
	revised := storyboard.Clone()
	var notes []string

	issues := report.AllIssues()
	if len(issues) == 0 {
		return revised, nil
	}

	technicalPanel := &revised.Panels[min(technicalPanelValueIndex, len(revised.Panels)-1)]

	misconceptionPending := false

	for _, issue := range issues {
		switch issue.IssueCode {
		case domain.IssueRecapNotFinal:
			if revised.RecapPanel != len(revised.Panels) {
				revised.RecapPanel = len(revised.Panels)
				notes = append(notes, "Moved recap panel to final position.")
			}

		case domain.IssueConfusionMissing:
			target := &revised.Panels[min(1, len(revised.Panels)-1)]
			if changed := appendOnce(&target.SceneDescription, confusionMomentSentence); changed {
				notes = append(notes, "Added explicit confusion moment panel.")
			}

		case domain.IssueKeyPointMissing:
			point, _ := issue.Metadata["missing_key_point"].(string)
			if point == "" {
				if len(expectedKeyPoints) > 0 {
					point = expectedKeyPoints[0]
				} else {
					point = "core concept"
				}
			}
			changed := appendOnce(&technicalPanel.TeachingIntent, fmt.Sprintf("Explicit key point: %s.", point))
			if technicalPanel.ExpectedTakeaway == "" {
				technicalPanel.ExpectedTakeaway = technicalPanel.TeachingIntent
			}
			changed = appendOnce(&technicalPanel.ExpectedTakeaway, fmt.Sprintf("Learner can explain %s.", point)) || changed
			if changed {
				notes = append(notes, fmt.Sprintf("Injected missing key point: %s.", point))
			}

		case domain.IssueRigorLow:
			if changed := appendOnce(&technicalPanel.TeachingIntent, rigorSentence); changed {
				notes = append(notes, "Strengthened technical rigor language.")
			}

		case domain.IssueBridgeMissing:
			if changed := appendOnce(&technicalPanel.TeachingIntent, bridgeSentence); changed {
				notes = append(notes, "Added intuition-to-formal bridge sentence.")
			}

		case domain.IssueDialogueTooDense, domain.IssueJargonOverload:
			changed := false
			for i := range revised.Panels {
				changed = truncateWords(&revised.Panels[i].DialogueOrCaption, denseDialogueWordBudget) || changed
			}
			if changed {
				notes = append(notes, "Shortened dense dialogue for beginner readability.")
			}

		case domain.IssueCaptionOverflow, domain.IssueCaptionTooLong:
			panelNumber := issue.PanelNumber
			if panelNumber == 0 {
				if fromMeta, ok := issue.Metadata["panel_number"].(int); ok {
					panelNumber = fromMeta
				}
			}
			if panelNumber == 0 {
				continue
			}
			for i := range revised.Panels {
				if revised.Panels[i].PanelNumber != panelNumber {
					continue
				}
				if truncateWords(&revised.Panels[i].DialogueOrCaption, overflowCaptionBudget) {
					notes = append(notes, fmt.Sprintf("Reduced caption overflow on panel %d.", panelNumber))
				}
				break
			}

		case domain.IssueMisconceptionUnaddressed:
			misconceptionPending = true
		}
	}

	if misconceptionPending && len(misconceptions) > 0 {
		changed := false
		for i := range revised.Panels {
			target := misconceptions[i%len(misconceptions)]
			if revised.Panels[i].MisconceptionAddressed != target {
				revised.Panels[i].MisconceptionAddressed = target
				changed = true
			}
		}
		if changed {
			notes = append(notes, "Mapped misconceptions explicitly across panels.")
		}
	}

	if report.MajorIssueCount > rewriteMajorThreshold && len(revised.Panels) > 0 {
		last := &revised.Panels[len(revised.Panels)-1]
		if last.ExpectedTakeaway != "" {
			if changed := appendOnce(&last.ExpectedTakeaway, strongerRecapSentence); changed {
				notes = append(notes, "Added stronger recap takeaway due to unresolved major issues.")
			}
		}
	}

	return revised, dedupeNotes(notes)
}

// appendOnce は suffix を含まない場合のみ追記します（大文字小文字は無視）。
// 追記が起きたときだけ true を返します。
func appendOnce(text *string, suffix string) bool {
	if strings.Contains(strings.ToLower(*text), strings.ToLower(suffix)) {
		return false
	}
	*text = normalizeSpace(strings.TrimRight(*text, " ") + " " + strings.TrimSpace(suffix))
	return true
}

// truncateWords は語数が予算を超える場合のみ切り詰め、true を返します。
func truncateWords(text *string, maxWords int) bool {
	words := strings.Fields(*text)
	if len(words) <= maxWords {
		return false
	}
	*text = strings.Join(words[:maxWords], " ") + "…"
	return true
}

func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func dedupeNotes(notes []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, note := range notes {
		if seen[note] {
			continue
		}
		seen[note] = true
		out = append(out, note)
	}
	return out
}
