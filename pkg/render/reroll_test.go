package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-comic-tutor/pkg/artifact"
	"github.com/shouni/go-comic-tutor/pkg/domain"
	"github.com/shouni/go-comic-tutor/pkg/models"
	"github.com/shouni/go-comic-tutor/pkg/taxonomy"
)

func TestRerollPanel_BypassesCacheAndReplacesRecord(t *testing.T) {
	model := &fakeModel{id: "gpt-image-1", provider: "openai", tier: models.TierMid, shade: 100}
	h := newHarness(t, func(key string) (models.ImageModel, error) { return model, nil }, fastPolicy())
	storyboard := renderStoryboard()

	paths, err := h.store.OpenRun(h.runID)
	if err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
		t.Fatal(err)
	}

	if _, err := h.orchestrator.Render(context.Background(), Request{
		RunID: h.runID, ModelKey: "gpt-image-1",
		Mode: domain.RunModeDraft, ImageTextMode: domain.ImageTextNone,
		Storyboard: storyboard,
	}); err != nil {
		t.Fatal(err)
	}
	callsAfterRender := model.calls

	model.shade = 200
	manifest, err := h.orchestrator.RerollPanel(context.Background(), RerollRequest{
		RunID: h.runID, ModelKey: "gpt-image-1", PanelNumber: 2,
		Mode: domain.RunModeDraft, ImageTextMode: domain.ImageTextNone,
		SeedOffset: 7,
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("キャッシュを素通りしてプロバイダを呼ぶのだ", func(t *testing.T) {
		if model.calls != callsAfterRender+1 {
			t.Errorf("追加の呼び出しは1回のはずなのだ: before=%d after=%d", callsAfterRender, model.calls)
		}
	})

	t.Run("対象コマだけが新しい画像に置き換わるのだ", func(t *testing.T) {
		var target *domain.PanelRenderRecord
		for i := range manifest.PanelRecords {
			if manifest.PanelRecords[i].PanelNumber == 2 {
				target = &manifest.PanelRecords[i]
			}
		}
		if target == nil {
			t.Fatal("コマ2の記録が見つからないのだ")
		}
		data, err := os.ReadFile(target.ImagePath)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, tinyPNG(200)) {
			t.Error("振り直し後の画像バイト列になっていないのだ")
		}
		if len(manifest.PanelRecords) != 4 {
			t.Errorf("記録数は変わらないはずなのだ: %d", len(manifest.PanelRecords))
		}
	})

	t.Run("振り直しノートがマニフェストに残るのだ", func(t *testing.T) {
		found := false
		for _, note := range manifest.Notes {
			if strings.Contains(note, "panel 2 rerolled") {
				found = true
			}
		}
		if !found {
			t.Errorf("リロールのノートが欲しいのだ: %v", manifest.Notes)
		}
	})

	t.Run("キャッシュ上書き後の再レンダリングはヒットするのだ", func(t *testing.T) {
		rerendered, err := h.orchestrator.Render(context.Background(), Request{
			RunID: h.runID, ModelKey: "gpt-image-1",
			Mode: domain.RunModeDraft, ImageTextMode: domain.ImageTextNone,
			Storyboard: storyboard,
		})
		if err != nil {
			t.Fatal(err)
		}
		if model.calls != callsAfterRender+1 {
			t.Errorf("全コマがキャッシュヒットのはずなのだ: calls=%d", model.calls)
		}
		for _, record := range rerendered.PanelRecords {
			if record.PanelNumber != 2 {
				continue
			}
			data, err := os.ReadFile(record.ImagePath)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, tinyPNG(200)) {
				t.Error("キャッシュが振り直し後の画像を返すべきなのだ")
			}
		}
	})
}

func TestRerollPanel_UnknownPanelIsInvalidInput(t *testing.T) {
	model := &fakeModel{id: "gpt-image-1", provider: "openai", tier: models.TierMid, shade: 50}
	h := newHarness(t, func(key string) (models.ImageModel, error) { return model, nil }, fastPolicy())
	storyboard := renderStoryboard()

	paths, err := h.store.OpenRun(h.runID)
	if err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
		t.Fatal(err)
	}
	if _, err := h.orchestrator.Render(context.Background(), Request{
		RunID: h.runID, ModelKey: "gpt-image-1",
		Mode: domain.RunModeDraft, ImageTextMode: domain.ImageTextNone,
		Storyboard: storyboard,
	}); err != nil {
		t.Fatal(err)
	}

	_, err = h.orchestrator.RerollPanel(context.Background(), RerollRequest{
		RunID: h.runID, ModelKey: "gpt-image-1", PanelNumber: 99,
		Mode: domain.RunModeDraft, ImageTextMode: domain.ImageTextNone,
	})
	var inputErr *taxonomy.InvalidInputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("invalid_input を期待したのだ: %v", err)
	}
}
