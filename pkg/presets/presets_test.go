package presets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shouni/go-comic-tutor/pkg/domain"
	"github.com/shouni/go-comic-tutor/pkg/taxonomy"
)

func TestRegistry_Builtins(t *testing.T) {
	registry := NewRegistry()

	t.Run("publish-strict は strict 構成なのだ", func(t *testing.T) {
		preset, err := registry.Get("publish-strict")
		if err != nil {
			t.Fatal(err)
		}
		if preset.Mode != domain.RunModePublish || preset.CritiqueMode != domain.CritiqueModeStrict {
			t.Errorf("publish-strict の構成が違うのだ: %+v", preset)
		}
		if preset.CritiqueMaxIterations != 4 || !preset.AutoRewrite {
			t.Errorf("批評ループ設定が違うのだ: %+v", preset)
		}
	})

	t.Run("一覧はID順で3件なのだ", func(t *testing.T) {
		presets := registry.List()
		if len(presets) != 3 {
			t.Fatalf("組み込みは3件なのだ: %d", len(presets))
		}
		if presets[0].PresetID != "cost-aware-explore" {
			t.Errorf("ID順になっていないのだ: %s", presets[0].PresetID)
		}
	})

	t.Run("未知IDは入力不正なのだ", func(t *testing.T) {
		_, err := registry.Get("no-such-preset")
		var invalid *taxonomy.InvalidInputError
		if !errors.As(err, &invalid) {
			t.Errorf("InvalidInputError を期待したのだ: %v", err)
		}
	})
}

func TestRegistry_LoadOverrides(t *testing.T) {
	overridePath := filepath.Join(t.TempDir(), "presets.yaml")
	overrideYAML := `fast-draft:
  description: "Tuned draft loop."
  panel_count: 5
  mode: draft
  critique_mode: strict
  auto_rewrite: true
  critique_max_iterations: 2
  image_text_mode: minimal
  template: intuition-to-formalism
  theme: clean-whiteboard
benchmark-batch:
  description: "Batch comparison across models."
  panel_count: 6
  mode: publish
  critique_mode: warn
  auto_rewrite: false
  critique_max_iterations: 0
  image_text_mode: none
  template: compare-and-contrast
  theme: textbook-modern
`
	if err := os.WriteFile(overridePath, []byte(overrideYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry()
	if err := registry.LoadOverrides(overridePath); err != nil {
		t.Fatal(err)
	}

	t.Run("同名の組み込みは置き換わるのだ", func(t *testing.T) {
		preset, err := registry.Get("fast-draft")
		if err != nil {
			t.Fatal(err)
		}
		if preset.PanelCount != 5 || preset.CritiqueMode != domain.CritiqueModeStrict {
			t.Errorf("上書きが反映されていないのだ: %+v", preset)
		}
		if preset.ImageTextMode != domain.ImageTextMinimal {
			t.Errorf("image_text_mode が違うのだ: %s", preset.ImageTextMode)
		}
	})

	t.Run("新規プリセットが追加されるのだ", func(t *testing.T) {
		preset, err := registry.Get("benchmark-batch")
		if err != nil {
			t.Fatal(err)
		}
		if preset.PresetID != "benchmark-batch" || preset.AutoRewrite {
			t.Errorf("追加プリセットの内容が違うのだ: %+v", preset)
		}
	})
}

func TestRegistry_LoadOverridesRejectsInvalid(t *testing.T) {
	overridePath := filepath.Join(t.TempDir(), "presets.yaml")
	badYAML := `broken:
  description: "Panel count out of range."
  panel_count: 2
  mode: draft
  critique_mode: warn
  image_text_mode: none
`
	if err := os.WriteFile(overridePath, []byte(badYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry()
	err := registry.LoadOverrides(overridePath)
	var schemaErr *taxonomy.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Errorf("SchemaError を期待したのだ: %v", err)
	}
	if _, getErr := registry.Get("broken"); getErr == nil {
		t.Error("不正なプリセットは登録されないのだ")
	}
}
