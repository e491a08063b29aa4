package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleStoryboard() *Storyboard {
	return &Storyboard{
		Topic:               "exploration vs exploitation",
		AudienceLevel:       "beginner",
		StoryTitle:          "バンディットの冒険",
		CharacterStyleGuide: "flat colors, round characters, consistent outfits",
		RecurringCharacters: []string{"Mento", "Nova"},
		Panels: []PanelScript{
			{PanelNumber: 1, SceneDescription: "A robot stares at two slot machines.", DialogueOrCaption: "Which arm should I pull?", TeachingIntent: "Introduce the choice problem."},
			{PanelNumber: 2, SceneDescription: "The robot keeps pulling one arm only.", DialogueOrCaption: "This one paid once, so always this one!", TeachingIntent: "Show naive exploitation."},
			{PanelNumber: 3, SceneDescription: "The other machine pays a jackpot to a stranger.", DialogueOrCaption: "Wait... was the other arm better?", TeachingIntent: "Reveal the cost of never exploring."},
			{PanelNumber: 4, SceneDescription: "The robot writes a simple tally of estimates.", DialogueOrCaption: "Try each arm, then lean on the best estimate.", TeachingIntent: "Recap the tradeoff rule.", ExpectedTakeaway: "Balance trying and using."},
		},
		RecapPanel: 4,
	}
}

func TestStoryboard_Validate(t *testing.T) {
	t.Run("正常な絵コンテは検証を通過するのだ", func(t *testing.T) {
		sb := sampleStoryboard()
		if err := sb.Validate(); err != nil {
			t.Fatalf("検証に失敗したのだ: %v", err)
		}
	})

	t.Run("コマ数が少なすぎるとエラーになるのだ", func(t *testing.T) {
		sb := sampleStoryboard()
		sb.Panels = sb.Panels[:2]
		err := sb.Validate()
		if err == nil || !strings.Contains(err.Error(), "4-12 panels") {
			t.Fatalf("コマ数エラーを期待したのだ: %v", err)
		}
	})

	t.Run("recap_panel が範囲外だとエラーになるのだ", func(t *testing.T) {
		sb := sampleStoryboard()
		sb.RecapPanel = 99
		if err := sb.Validate(); err == nil {
			t.Fatal("範囲外の recap_panel が通ってしまったのだ")
		}
	})
}

func TestStoryboard_Clone(t *testing.T) {
	t.Run("クローンへの変更は元に影響しないのだ", func(t *testing.T) {
		original := sampleStoryboard()
		clone := original.Clone()
		clone.Panels[0].SceneDescription = "completely different scene now"
		clone.RecapPanel = 1

		if original.Panels[0].SceneDescription == clone.Panels[0].SceneDescription {
			t.Error("パネルの変更が元へ漏れたのだ")
		}
		if original.RecapPanel != 4 {
			t.Errorf("recap_panel が書き換わったのだ: %d", original.RecapPanel)
		}
	})
}

func TestStoryboard_Hash(t *testing.T) {
	t.Run("同一内容なら同一ハッシュ、変更すれば別ハッシュなのだ", func(t *testing.T) {
		a := sampleStoryboard()
		b := sampleStoryboard()
		if a.Hash() != b.Hash() {
			t.Error("同一内容でハッシュが一致しないのだ")
		}
		b.Panels[1].DialogueOrCaption += "!"
		if a.Hash() == b.Hash() {
			t.Error("内容が違うのにハッシュが一致したのだ")
		}
	})
}

func TestCritiqueReport_CountBySeverity(t *testing.T) {
	report := CritiqueReport{
		BlockingIssueCount: 1,
		MajorIssueCount:    2,
		ReviewerReports: []ReviewerCritique{
			{Reviewer: "pedagogy", Issues: []CritiqueIssue{
				{Severity: SeverityCritical, IssueCode: IssueRecapNotFinal},
				{Severity: SeverityMajor, IssueCode: IssueConfusionMissing},
			}},
			{Reviewer: "visual", Issues: []CritiqueIssue{
				{Severity: SeverityMajor, IssueCode: IssueCaptionOverflow},
				{Severity: SeverityMinor, IssueCode: IssueMissingMetaphor},
			}},
		},
	}

	if got := report.CountBySeverity(SeverityCritical); got != report.BlockingIssueCount {
		t.Errorf("critical 件数が不整合なのだ: %d", got)
	}
	if got := report.CountBySeverity(SeverityMajor); got != report.MajorIssueCount {
		t.Errorf("major 件数が不整合なのだ: %d", got)
	}
}

func TestRenderManifest_AppendNote(t *testing.T) {
	var manifest RenderManifest
	manifest.AppendNote("fallback used")
	manifest.AppendNote("fallback used")
	manifest.AppendNote("cache hit panel 2")
	if len(manifest.Notes) != 2 {
		t.Fatalf("注記の重複排除に失敗したのだ: %v", manifest.Notes)
	}
}

func TestStoryboard_JSON(t *testing.T) {
	t.Run("プランナー出力のJSON形式を読めるのだ", func(t *testing.T) {
		inputJSON := `{
			"topic": "caching",
			"audience_level": "beginner",
			"story_title": "The Cache Quest",
			"character_style_guide": "simple flat style",
			"recurring_characters": ["A", "B"],
			"panels": [
				{"panel_number": 1, "scene_description": "a librarian at a desk", "dialogue_or_caption": "Again this book?", "teaching_intent": "introduce repeated lookups"}
			],
			"recap_panel": 1
		}`
		var sb Storyboard
		if err := json.Unmarshal([]byte(inputJSON), &sb); err != nil {
			t.Fatalf("パース失敗なのだ: %v", err)
		}
		if sb.Panels[0].SceneDescription != "a librarian at a desk" {
			t.Errorf("scene_description が正しく読めていないのだ: %s", sb.Panels[0].SceneDescription)
		}
	})
}
