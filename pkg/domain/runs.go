package domain

import "time"

// RunMode はレンダリングの品質モードです。draft は 768px、publish は 1024px。
type RunMode string

const (
	RunModeDraft   RunMode = "draft"
	RunModePublish RunMode = "publish"
)

// ImageTextMode は画像内テキストの描画ポリシーです。
type ImageTextMode string

const (
	ImageTextNone    ImageTextMode = "none"
	ImageTextMinimal ImageTextMode = "minimal"
	ImageTextFull    ImageTextMode = "full"
)

// CompletionStatus はレンダリング実行全体の完了状態です。
type CompletionStatus string

const (
	CompletionSuccess        CompletionStatus = "success"
	CompletionPartialSuccess CompletionStatus = "partial_success"
	CompletionFailure        CompletionStatus = "failure"
)

// RunConfig は再現性のために保存される実行時入力です。
type RunConfig struct {
	RunID         string        `json:"run_id"`
	Topic         string        `json:"topic,omitempty"`
	AudienceLevel string        `json:"audience_level"`
	PanelCount    int           `json:"panel_count"`
	Mode          RunMode       `json:"mode"`
	ImageTextMode ImageTextMode `json:"image_text_mode"`
	CreatedAt     string        `json:"created_at"`
}

// PanelRenderRecord はコマ1枚分のレンダリング記録です。
type PanelRenderRecord struct {
	PanelNumber      int            `json:"panel_number"`
	PromptPath       string         `json:"prompt_path"`
	ImagePath        string         `json:"image_path"`
	EstimatedCostUSD float64        `json:"estimated_cost_usd"`
	ProviderUsage    map[string]any `json:"provider_usage,omitempty"`
}

// RenderManifest はモデル単位のレンダリング実行マニフェストです。
// 実行の成否にかかわらず必ず永続化され、レポートやバンディットの
// 報酬設計に消費されます。
type RenderManifest struct {
	RunID                 string              `json:"run_id"`
	ModelKey              string              `json:"model_key"`
	Provider              string              `json:"provider"`
	Mode                  RunMode             `json:"mode"`
	StoryboardHash        string              `json:"storyboard_hash"`
	PromptHash            string              `json:"prompt_hash"`
	StartedAt             string              `json:"started_at"`
	PanelRecords          []PanelRenderRecord `json:"panel_records"`
	TotalEstimatedCostUSD float64             `json:"total_estimated_cost_usd"`
	CompletionStatus      CompletionStatus    `json:"completion_status"`
	ErrorKind             string              `json:"error_kind,omitempty"`
	ErrorMessage          string              `json:"error_message,omitempty"`
	Notes                 []string            `json:"notes,omitempty"`
}

// AppendNote は重複を除外しつつマニフェストへ注記を追加します。
func (m *RenderManifest) AppendNote(note string) {
	for _, existing := range m.Notes {
		if existing == note {
			return
		}
	}
	m.Notes = append(m.Notes, note)
}

// UTCTimestamp は記録用の UTC タイムスタンプを返します。
func UTCTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
