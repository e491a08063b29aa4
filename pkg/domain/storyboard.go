package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PanelScript は、コマ1枚分の脚本と教育意図を保持します。
type PanelScript struct {
	PanelNumber            int    `json:"panel_number"`
	SceneDescription       string `json:"scene_description"`
	DialogueOrCaption      string `json:"dialogue_or_caption"`
	TeachingIntent         string `json:"teaching_intent"`
	MisconceptionAddressed string `json:"misconception_addressed,omitempty"`
	ExpectedTakeaway       string `json:"expected_takeaway,omitempty"`
	MetaphorAnchor         string `json:"metaphor_anchor,omitempty"`
}

// Storyboard は、コミックストリップ全体の絵コンテです。
// プランナーが生成した初期状態を入力とし、批評ループの書き換え以外では
// イミュータブルなスナップショットとして扱います。
type Storyboard struct {
	Topic               string        `json:"topic"`
	AudienceLevel       string        `json:"audience_level"`
	StoryTitle          string        `json:"story_title"`
	CharacterStyleGuide string        `json:"character_style_guide"`
	RecurringCharacters []string      `json:"recurring_characters"`
	Panels              []PanelScript `json:"panels"`
	RecapPanel          int           `json:"recap_panel,omitempty"`
}

// Validate は絵コンテの構造的な整合性を検査します。
// 失敗した内容はそのまま schema_validation_failure として報告されます。
func (s *Storyboard) Validate() error {
	if len(s.Panels) < 4 || len(s.Panels) > 12 {
		return fmt.Errorf("storyboard must have 4-12 panels, got %d", len(s.Panels))
	}
	if len(s.RecurringCharacters) < 2 {
		return fmt.Errorf("storyboard needs at least 2 recurring characters, got %d", len(s.RecurringCharacters))
	}
	for i, panel := range s.Panels {
		if panel.PanelNumber < 1 {
			return fmt.Errorf("panel %d: panel_number must be >= 1", i+1)
		}
		if len(panel.SceneDescription) < 10 {
			return fmt.Errorf("panel %d: scene_description too short", panel.PanelNumber)
		}
		if len(panel.DialogueOrCaption) < 5 {
			return fmt.Errorf("panel %d: dialogue_or_caption too short", panel.PanelNumber)
		}
		if len(panel.TeachingIntent) < 5 {
			return fmt.Errorf("panel %d: teaching_intent too short", panel.PanelNumber)
		}
	}
	if s.RecapPanel != 0 && (s.RecapPanel < 1 || s.RecapPanel > len(s.Panels)) {
		return fmt.Errorf("recap_panel %d is outside panel range 1-%d", s.RecapPanel, len(s.Panels))
	}
	return nil
}

// Clone は絵コンテのディープコピーを返します。
// 書き換えエンジンは常にコピーに対して変更を加え、入力を汚しません。
func (s *Storyboard) Clone() *Storyboard {
	clone := *s
	clone.RecurringCharacters = append([]string(nil), s.RecurringCharacters...)
	clone.Panels = append([]PanelScript(nil), s.Panels...)
	return &clone
}

// Hash は正規化JSON表現の SHA-256 ハッシュを返します。
func (s *Storyboard) Hash() string {
	data, err := json.Marshal(s)
	if err != nil {
		// Marshal が失敗するのは型定義の破壊時のみ
		return ""
	}
	return SHA256Text(string(data))
}

// SHA256Text はテキストの SHA-256 ハッシュを16進文字列で返します。
func SHA256Text(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
