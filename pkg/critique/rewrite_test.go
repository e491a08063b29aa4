package critique

import (
	"strings"
	"testing"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

func reportWith(issues ...domain.CritiqueIssue) domain.CritiqueReport {
	report := domain.CritiqueReport{
		ReviewerReports: []domain.ReviewerCritique{{Reviewer: "test", Issues: issues}},
	}
	for _, issue := range issues {
		switch issue.Severity {
		case domain.SeverityCritical:
			report.BlockingIssueCount++
		case domain.SeverityMajor:
			report.MajorIssueCount++
		}
	}
	return report
}

func TestApplyTargetedRewrites_RecapAndConfusion(t *testing.T) {
	sb := brokenStoryboard()
	report := reportWith(
		domain.CritiqueIssue{Severity: domain.SeverityCritical, IssueCode: domain.IssueRecapNotFinal},
		domain.CritiqueIssue{Severity: domain.SeverityMajor, IssueCode: domain.IssueConfusionMissing},
	)

	revised, notes := ApplyTargetedRewrites(sb, report, nil, nil)

	if revised.RecapPanel != len(revised.Panels) {
		t.Errorf("recap は最終コマに移動するはずなのだ: %d", revised.RecapPanel)
	}
	if !strings.Contains(strings.ToLower(revised.Panels[1].SceneDescription), "confusion") {
		t.Error("混乱モーメントが追記されていないのだ")
	}
	if len(notes) != 2 {
		t.Errorf("2件のノートを期待したのだ: %v", notes)
	}

	t.Run("入力の絵コンテは変更しないのだ", func(t *testing.T) {
		if sb.RecapPanel != 1 {
			t.Error("入力側の recap が書き換えられてしまったのだ")
		}
		if strings.Contains(strings.ToLower(sb.Panels[1].SceneDescription), "confusion") {
			t.Error("入力側のコマが書き換えられてしまったのだ")
		}
	})
}

func TestApplyTargetedRewrites_SecondApplicationIsNoOp(t *testing.T) {
	report := reportWith(
		domain.CritiqueIssue{Severity: domain.SeverityCritical, IssueCode: domain.IssueRecapNotFinal},
		domain.CritiqueIssue{Severity: domain.SeverityMajor, IssueCode: domain.IssueConfusionMissing},
		domain.CritiqueIssue{Severity: domain.SeverityMajor, IssueCode: domain.IssueRigorLow},
		domain.CritiqueIssue{Severity: domain.SeverityMajor, IssueCode: domain.IssueBridgeMissing},
		domain.CritiqueIssue{Severity: domain.SeverityCritical, IssueCode: domain.IssueKeyPointMissing,
			Metadata: map[string]any{"missing_key_point": "regret bound"}},
	)

	first, firstNotes := ApplyTargetedRewrites(brokenStoryboard(), report, nil, nil)
	if len(firstNotes) == 0 {
		t.Fatal("1回目の適用でノートが出るはずなのだ")
	}

	second, secondNotes := ApplyTargetedRewrites(first, report, nil, nil)
	if len(secondNotes) != 0 {
		t.Errorf("同一レポートの2回目の適用は no-op のはずなのだ: %v", secondNotes)
	}
	if first.Hash() != second.Hash() {
		t.Error("2回目の適用で絵コンテが変化してしまったのだ")
	}
}

func TestApplyTargetedRewrites_KeyPointInjection(t *testing.T) {
	report := reportWith(domain.CritiqueIssue{
		Severity: domain.SeverityCritical, IssueCode: domain.IssueKeyPointMissing,
		Metadata: map[string]any{"missing_key_point": "regret bound"},
	})

	revised, notes := ApplyTargetedRewrites(cleanStoryboard(), report, nil, nil)

	intent := revised.Panels[technicalPanelValueIndex].TeachingIntent
	if !strings.Contains(intent, "regret bound") {
		t.Errorf("教育意図にキーポイントが入るべきなのだ: %s", intent)
	}
	if len(notes) != 1 {
		t.Errorf("ノート1件を期待したのだ: %v", notes)
	}
}

func TestApplyTargetedRewrites_CaptionTruncation(t *testing.T) {
	sb := cleanStoryboard()
	sb.Panels[2].DialogueOrCaption = strings.Repeat("word ", 40) + "tail"
	report := reportWith(domain.CritiqueIssue{
		Severity: domain.SeverityMajor, IssueCode: domain.IssueCaptionOverflow, PanelNumber: 3,
	})

	revised, notes := ApplyTargetedRewrites(sb, report, nil, nil)

	got := len(strings.Fields(revised.Panels[2].DialogueOrCaption))
	if got > overflowCaptionBudget {
		t.Errorf("キャプションは%d語以内に切り詰めるのだ: %d語", overflowCaptionBudget, got)
	}
	if !strings.HasSuffix(revised.Panels[2].DialogueOrCaption, "…") {
		t.Error("切り詰めは省略記号で示すのだ")
	}
	if len(notes) != 1 {
		t.Errorf("ノート1件を期待したのだ: %v", notes)
	}
}

func TestApplyTargetedRewrites_MisconceptionRoundRobin(t *testing.T) {
	misconceptions := []string{"more arms is always better", "past payout predicts future"}
	report := reportWith(domain.CritiqueIssue{
		Severity: domain.SeverityMajor, IssueCode: domain.IssueMisconceptionUnaddressed,
	})

	revised, _ := ApplyTargetedRewrites(cleanStoryboard(), report, nil, misconceptions)

	for i, panel := range revised.Panels {
		want := misconceptions[i%len(misconceptions)]
		if panel.MisconceptionAddressed != want {
			t.Errorf("panel %d: 誤解の割当が違うのだ。期待: %q, 実際: %q", i+1, want, panel.MisconceptionAddressed)
		}
	}
}

func TestApplyTargetedRewrites_UnmappableIssueYieldsNoNotes(t *testing.T) {
	report := reportWith(domain.CritiqueIssue{
		Severity: domain.SeverityCritical, IssueCode: domain.IssuePanelCountTooLow,
	})

	_, notes := ApplyTargetedRewrites(cleanStoryboard(), report, nil, nil)
	if len(notes) != 0 {
		t.Errorf("決定的ルールの無いイシューはノートを生まないのだ: %v", notes)
	}
}
