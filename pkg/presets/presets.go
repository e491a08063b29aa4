// Package presets は定番ワークフローの実行プリセットを提供します。
// 組み込みレジストリに加えて、YAMLファイルでの上書き・追加に対応します。
package presets

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shouni/go-comic-tutor/pkg/domain"
	"github.com/shouni/go-comic-tutor/pkg/taxonomy"
)

// RunPreset はオンボーディングと再現可能な実行のための設定束です。
type RunPreset struct {
	PresetID              string               `yaml:"preset_id" json:"preset_id"`
	Description           string               `yaml:"description" json:"description"`
	PanelCount            int                  `yaml:"panel_count" json:"panel_count"`
	Mode                  domain.RunMode       `yaml:"mode" json:"mode"`
	CritiqueMode          domain.CritiqueMode  `yaml:"critique_mode" json:"critique_mode"`
	AutoRewrite           bool                 `yaml:"auto_rewrite" json:"auto_rewrite"`
	CritiqueMaxIterations int                  `yaml:"critique_max_iterations" json:"critique_max_iterations"`
	ImageTextMode         domain.ImageTextMode `yaml:"image_text_mode" json:"image_text_mode"`
	Template              string               `yaml:"template" json:"template"`
	Theme                 string               `yaml:"theme" json:"theme"`
}

// Registry はプリセットの検索面です。
type Registry struct {
	presets map[string]RunPreset
}

// NewRegistry は組み込みプリセットだけを持つレジストリを返します。
func NewRegistry() *Registry {
	registry := &Registry{presets: map[string]RunPreset{}}
	for _, preset := range builtinPresets {
		registry.presets[preset.PresetID] = preset
	}
	return registry
}

var builtinPresets = []RunPreset{
	{
		PresetID:              "fast-draft",
		Description:           "Low-friction draft for quick iteration.",
		PanelCount:            4,
		Mode:                  domain.RunModeDraft,
		CritiqueMode:          domain.CritiqueModeWarn,
		AutoRewrite:           true,
		CritiqueMaxIterations: 1,
		ImageTextMode:         domain.ImageTextNone,
		Template:              "intuition-to-formalism",
		Theme:                 "clean-whiteboard",
	},
	{
		PresetID:              "publish-strict",
		Description:           "Strict publish-quality setup with stronger critique loop.",
		PanelCount:            6,
		Mode:                  domain.RunModePublish,
		CritiqueMode:          domain.CritiqueModeStrict,
		AutoRewrite:           true,
		CritiqueMaxIterations: 4,
		ImageTextMode:         domain.ImageTextNone,
		Template:              "misconception-first",
		Theme:                 "textbook-modern",
	},
	{
		PresetID:              "cost-aware-explore",
		Description:           "Cost-aware experimentation preset for cheap-tier exploration.",
		PanelCount:            4,
		Mode:                  domain.RunModeDraft,
		CritiqueMode:          domain.CritiqueModeWarn,
		AutoRewrite:           true,
		CritiqueMaxIterations: 2,
		ImageTextMode:         domain.ImageTextNone,
		Template:              "compare-and-contrast",
		Theme:                 "clean-whiteboard",
	},
}

// Get はIDでプリセットを検索します。未知のIDは invalid_input に
// 分類される入力不正エラーになります。
func (r *Registry) Get(presetID string) (RunPreset, error) {
	preset, ok := r.presets[presetID]
	if !ok {
		return RunPreset{}, &taxonomy.InvalidInputError{
			Reason: fmt.Sprintf("unknown preset '%s'. Available: %s", presetID, strings.Join(r.ids(), ", ")),
		}
	}
	return preset, nil
}

// List は全プリセットをID順で返します。
func (r *Registry) List() []RunPreset {
	out := make([]RunPreset, 0, len(r.presets))
	for _, id := range r.ids() {
		out = append(out, r.presets[id])
	}
	return out
}

func (r *Registry) ids() []string {
	ids := make([]string, 0, len(r.presets))
	for id := range r.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadOverrides はYAMLファイルからプリセットを読み込み、同名の
// 組み込みを置き換えるか新規に追加します。ファイル形式は
// preset_id をキーとするマップです。
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read preset overrides: %w", err)
	}

	var overrides map[string]RunPreset
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return &taxonomy.SchemaError{Err: fmt.Errorf("invalid preset override file %s: %w", path, err)}
	}

	for id, preset := range overrides {
		preset.PresetID = id
		if err := validatePreset(preset); err != nil {
			return &taxonomy.SchemaError{Err: err}
		}
		r.presets[id] = preset
	}
	return nil
}

func validatePreset(preset RunPreset) error {
	if preset.PanelCount < 4 || preset.PanelCount > 12 {
		return fmt.Errorf("preset %s: panel_count must be 4-12, got %d", preset.PresetID, preset.PanelCount)
	}
	switch preset.Mode {
	case domain.RunModeDraft, domain.RunModePublish:
	default:
		return fmt.Errorf("preset %s: unknown mode %q", preset.PresetID, preset.Mode)
	}
	switch preset.CritiqueMode {
	case domain.CritiqueModeOff, domain.CritiqueModeWarn, domain.CritiqueModeStrict:
	default:
		return fmt.Errorf("preset %s: unknown critique_mode %q", preset.PresetID, preset.CritiqueMode)
	}
	switch preset.ImageTextMode {
	case domain.ImageTextNone, domain.ImageTextMinimal, domain.ImageTextFull:
	default:
		return fmt.Errorf("preset %s: unknown image_text_mode %q", preset.PresetID, preset.ImageTextMode)
	}
	if preset.CritiqueMaxIterations < 0 {
		return fmt.Errorf("preset %s: critique_max_iterations must be >= 0", preset.PresetID)
	}
	return nil
}
