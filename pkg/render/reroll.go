package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shouni/go-comic-tutor/pkg/artifact"
	"github.com/shouni/go-comic-tutor/pkg/domain"
	"github.com/shouni/go-comic-tutor/pkg/models"
	"github.com/shouni/go-comic-tutor/pkg/panelcache"
	"github.com/shouni/go-comic-tutor/pkg/prompts"
	"github.com/shouni/go-comic-tutor/pkg/reliability"
	"github.com/shouni/go-comic-tutor/pkg/taxonomy"
)

// RerollRequest は既存 run の1コマだけを再生成する入力です。
// SeedOffset を変えることで同じプロンプトから別の乱数系列を引けます。
type RerollRequest struct {
	RunID         string
	ModelKey      string
	PanelNumber   int
	Mode          domain.RunMode
	ImageTextMode domain.ImageTextMode
	SeedOffset    int64
	DryRun        bool
}

// RerollPanel は既存マニフェストの1コマをキャッシュを素通りして
// 再生成し、成功時はキャッシュとマニフェストを新しい画像で上書き
// します。コマ単位の失敗もマニフェストに記録されます。
func (o *Orchestrator) RerollPanel(ctx context.Context, req RerollRequest) (*domain.RenderManifest, error) {
	paths, err := o.store.OpenRun(req.RunID)
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(paths.Root, fmt.Sprintf("manifest_%s.json", req.ModelKey))
	manifest := &domain.RenderManifest{}
	if err := artifact.ReadJSON(manifestPath, manifest); err != nil {
		return nil, err
	}

	storyboard := &domain.Storyboard{}
	if err := artifact.ReadJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
		return nil, err
	}
	if err := storyboard.Validate(); err != nil {
		return nil, &taxonomy.SchemaError{Err: err}
	}

	var target *domain.PanelScript
	for i := range storyboard.Panels {
		if storyboard.Panels[i].PanelNumber == req.PanelNumber {
			target = &storyboard.Panels[i]
			break
		}
	}
	if target == nil {
		return nil, &taxonomy.InvalidInputError{
			Reason: fmt.Sprintf("panel %d not found in storyboard for run %s", req.PanelNumber, req.RunID),
		}
	}

	model, err := o.factory(req.ModelKey)
	if err != nil {
		return nil, err
	}

	width, height := sizeForMode(req.Mode)
	prompt := o.builder.BuildPanelPrompt(storyboard, *target, req.ImageTextMode)
	promptPath := filepath.Join(paths.PromptsDir, fmt.Sprintf("panel_%02d.txt", req.PanelNumber))
	if err := os.WriteFile(promptPath, []byte(prompt+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write panel prompt: %w", err)
	}
	outputPath := filepath.Join(paths.ImagesDir, req.ModelKey, fmt.Sprintf("panel_%02d.png", req.PanelNumber))

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	slog.Info("コマを振り直すのだ",
		"run_id", req.RunID, "model", req.ModelKey, "panel", req.PanelNumber, "seed_offset", req.SeedOffset)

	seed := prompts.SeedForStoryboard(storyboard) + req.SeedOffset
	executorKey := fmt.Sprintf("%s:%s", model.Provider(), model.ModelID())
	result, err := reliability.Run(ctx, executorKey, o.policy, o.breaker, func(attemptCtx context.Context) (models.PanelImageResult, error) {
		return model.GeneratePanelImage(attemptCtx, models.PanelImageRequest{
			PanelNumber:    req.PanelNumber,
			Prompt:         prompt,
			NegativePrompt: o.builder.BuildNegativePrompt(req.ImageTextMode),
			Width:          width,
			Height:         height,
			StyleGuide:     storyboard.CharacterStyleGuide,
			OutputPath:     outputPath,
			Seed:           &seed,
			DryRun:         req.DryRun,
		})
	})
	if err != nil {
		kind, message := taxonomy.Classify(err)
		manifest.AppendNote(fmt.Sprintf("reroll of panel %d failed: %s: %s", req.PanelNumber, kind, message))
		if persistErr := artifact.WriteJSON(manifestPath, manifest); persistErr != nil {
			slog.Error("マニフェストの永続化に失敗したのだ", "path", manifestPath, "error", persistErr)
		}
		return manifest, err
	}

	cacheKey := panelcache.ComputeKey(
		model.ModelID(), string(req.Mode), width, height,
		storyboard.CharacterStyleGuide, prompt)
	if cacheErr := o.cache.Store(cacheKey, panelcache.Entry{
		ImagePath:  result.ImagePath,
		ModelKey:   model.ModelID(),
		Mode:       string(req.Mode),
		PromptHash: domain.SHA256Text(prompt),
		StoredAt:   domain.UTCTimestamp(),
	}); cacheErr != nil {
		slog.Warn("パネルキャッシュへの保存に失敗したのだ", "error", cacheErr)
	}

	record := domain.PanelRenderRecord{
		PanelNumber:      req.PanelNumber,
		PromptPath:       promptPath,
		ImagePath:        result.ImagePath,
		EstimatedCostUSD: result.EstimatedCostUSD,
		ProviderUsage:    result.ProviderUsage,
	}
	replaced := false
	for i := range manifest.PanelRecords {
		if manifest.PanelRecords[i].PanelNumber == req.PanelNumber {
			manifest.PanelRecords[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		manifest.PanelRecords = append(manifest.PanelRecords, record)
	}
	manifest.AppendNote(fmt.Sprintf("panel %d rerolled with seed offset %d", req.PanelNumber, req.SeedOffset))
	manifest.TotalEstimatedCostUSD = roundCost(manifest.PanelRecords)

	var imagePaths []string
	for _, rec := range manifest.PanelRecords {
		imagePaths = append(imagePaths, rec.ImagePath)
	}
	stripPath := filepath.Join(paths.CompositeDir, req.ModelKey, "strip.png")
	if err := ComposeStrip(imagePaths, stripPath); err != nil {
		return nil, err
	}

	if err := artifact.WriteJSON(manifestPath, manifest); err != nil {
		return nil, err
	}
	if err := o.store.AppendRegistry(map[string]any{
		"run_id": req.RunID,
		"event":  "panel_reroll",
		"model":  req.ModelKey,
		"panel":  req.PanelNumber,
	}); err != nil {
		slog.Warn("実験レジストリへの追記に失敗したのだ", "error", err)
	}

	slog.Info("コマの振り直しが完了したのだ",
		"run_id", req.RunID, "panel", req.PanelNumber, "image", result.ImagePath)
	return manifest, nil
}
