// Package render は絵コンテ1本をモデル1つでレンダリングする
// オーケストレーションです。コマ単位でキャッシュ・信頼性レイヤー・
// フォールバックを通し、成否にかかわらずマニフェストを永続化します。
package render

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/shouni/go-comic-tutor/pkg/artifact"
	"github.com/shouni/go-comic-tutor/pkg/domain"
	"github.com/shouni/go-comic-tutor/pkg/models"
	"github.com/shouni/go-comic-tutor/pkg/panelcache"
	"github.com/shouni/go-comic-tutor/pkg/prompts"
	"github.com/shouni/go-comic-tutor/pkg/reliability"
	"github.com/shouni/go-comic-tutor/pkg/taxonomy"
)

// ModelFactory はモデルキーからアダプターを解決します。
type ModelFactory func(modelKey string) (models.ImageModel, error)

// Orchestrator はレンダリング実行の依存一式を束ねます。
type Orchestrator struct {
	store           *artifact.Store
	cache           *panelcache.Cache
	breaker         *reliability.CircuitBreaker
	policy          reliability.Policy
	builder         *prompts.Builder
	factory         ModelFactory
	limiter         *rate.Limiter
	fallbackEnabled bool
}

// Options は Orchestrator の構築パラメータです。
type Options struct {
	Store           *artifact.Store
	Cache           *panelcache.Cache
	Breaker         *reliability.CircuitBreaker
	Policy          reliability.Policy
	PromptBuilder   *prompts.Builder
	Factory         ModelFactory
	Limiter         *rate.Limiter
	FallbackEnabled bool
}

// NewOrchestrator は Orchestrator を生成します。Limiter が nil の
// 場合は流量制限なしで動作します。
func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		store:           opts.Store,
		cache:           opts.Cache,
		breaker:         opts.Breaker,
		policy:          opts.Policy,
		builder:         opts.PromptBuilder,
		factory:         opts.Factory,
		limiter:         opts.Limiter,
		fallbackEnabled: opts.FallbackEnabled,
	}
}

// Request は1回のレンダリング実行の入力です。Storyboard が nil の
// 場合は実行ディレクトリの storyboard.json を読み込みます。
type Request struct {
	RunID         string
	ModelKey      string
	Mode          domain.RunMode
	ImageTextMode domain.ImageTextMode
	DryRun        bool
	Storyboard    *domain.Storyboard
}

// sizeForMode は品質モードを出力サイズへ落とします。
func sizeForMode(mode domain.RunMode) (int, int) {
	if mode == domain.RunModePublish {
		return 1024, 1024
	}
	return 768, 768
}

// Render は絵コンテの全コマを storyboard 順に処理します。回復不能な
// コマがあった時点で中断しますが、そこまでの部分マニフェストは必ず
// 書き出してからエラーを返します。
func (o *Orchestrator) Render(ctx context.Context, req Request) (*domain.RenderManifest, error) {
	paths, err := o.store.OpenRun(req.RunID)
	if err != nil {
		return nil, err
	}

	storyboard := req.Storyboard
	if storyboard == nil {
		storyboard = &domain.Storyboard{}
		if err := artifact.ReadJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
			return nil, err
		}
	}
	if err := storyboard.Validate(); err != nil {
		return nil, &taxonomy.SchemaError{Err: err}
	}

	model, err := o.factory(req.ModelKey)
	if err != nil {
		return nil, err
	}

	width, height := sizeForMode(req.Mode)
	manifest := &domain.RenderManifest{
		RunID:          req.RunID,
		ModelKey:       req.ModelKey,
		Provider:       model.Provider(),
		Mode:           req.Mode,
		StoryboardHash: storyboard.Hash(),
		StartedAt:      domain.UTCTimestamp(),
	}
	manifestPath := filepath.Join(paths.Root, fmt.Sprintf("manifest_%s.json", req.ModelKey))

	modelImageDir := filepath.Join(paths.ImagesDir, req.ModelKey)
	if err := os.MkdirAll(modelImageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create model image dir: %w", err)
	}

	slog.Info("レンダリングを開始するのだ",
		"run_id", req.RunID, "model", req.ModelKey, "mode", req.Mode, "panels", len(storyboard.Panels))

	var promptTexts []string
	var imagePaths []string
	for _, panel := range storyboard.Panels {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return o.abort(manifest, manifestPath, err)
			}
		}

		prompt := o.builder.BuildPanelPrompt(storyboard, panel, req.ImageTextMode)
		promptTexts = append(promptTexts, prompt)
		promptPath := filepath.Join(paths.PromptsDir, fmt.Sprintf("panel_%02d.txt", panel.PanelNumber))
		if err := os.WriteFile(promptPath, []byte(prompt+"\n"), 0o644); err != nil {
			return o.abort(manifest, manifestPath, fmt.Errorf("failed to write panel prompt: %w", err))
		}

		outputPath := filepath.Join(modelImageDir, fmt.Sprintf("panel_%02d.png", panel.PanelNumber))
		record, err := o.renderPanel(ctx, panelJob{
			model:      model,
			manifest:   manifest,
			storyboard: storyboard,
			panel:      panel,
			prompt:     prompt,
			promptPath: promptPath,
			outputPath: outputPath,
			width:      width,
			height:     height,
			mode:       req.Mode,
			textMode:   req.ImageTextMode,
			dryRun:     req.DryRun,
		})
		if err != nil {
			return o.abort(manifest, manifestPath, err)
		}
		manifest.PanelRecords = append(manifest.PanelRecords, record)
		imagePaths = append(imagePaths, record.ImagePath)
	}

	stripPath := filepath.Join(paths.CompositeDir, req.ModelKey, "strip.png")
	if err := ComposeStrip(imagePaths, stripPath); err != nil {
		return o.abort(manifest, manifestPath, err)
	}

	manifest.PromptHash = domain.SHA256Text(strings.Join(promptTexts, "\n"))
	manifest.TotalEstimatedCostUSD = roundCost(manifest.PanelRecords)
	manifest.CompletionStatus = domain.CompletionSuccess
	if err := artifact.WriteJSON(manifestPath, manifest); err != nil {
		return nil, err
	}

	if err := o.store.AppendRegistry(map[string]any{
		"run_id":             req.RunID,
		"event":              "render_complete",
		"model":              req.ModelKey,
		"estimated_cost_usd": manifest.TotalEstimatedCostUSD,
	}); err != nil {
		slog.Warn("実験レジストリへの追記に失敗したのだ", "error", err)
	}

	slog.Info("レンダリングが完了したのだ",
		"run_id", req.RunID, "model", req.ModelKey, "cost_usd", manifest.TotalEstimatedCostUSD)
	return manifest, nil
}

type panelJob struct {
	model      models.ImageModel
	manifest   *domain.RenderManifest
	storyboard *domain.Storyboard
	panel      domain.PanelScript
	prompt     string
	promptPath string
	outputPath string
	width      int
	height     int
	mode       domain.RunMode
	textMode   domain.ImageTextMode
	dryRun     bool
}

// renderPanel は1コマを キャッシュ → 信頼性レイヤー → フォールバック
// の順で解決します。
func (o *Orchestrator) renderPanel(ctx context.Context, job panelJob) (domain.PanelRenderRecord, error) {
	cacheKey := panelcache.ComputeKey(
		job.model.ModelID(), string(job.mode), job.width, job.height,
		job.storyboard.CharacterStyleGuide, job.prompt)

	if entry, ok := o.cache.Lookup(cacheKey); ok {
		if err := copyArtifact(entry.ImagePath, job.outputPath); err != nil {
			return domain.PanelRenderRecord{}, err
		}
		slog.Info("キャッシュヒットなのだ", "panel", job.panel.PanelNumber, "source", entry.ImagePath)
		return domain.PanelRenderRecord{
			PanelNumber:      job.panel.PanelNumber,
			PromptPath:       job.promptPath,
			ImagePath:        job.outputPath,
			EstimatedCostUSD: 0,
			ProviderUsage:    map[string]any{"mode": "cache_hit", "source_path": entry.ImagePath},
		}, nil
	}

	result, err := o.generateWithReliability(ctx, job.model, job)
	if err == nil {
		o.storeInCache(cacheKey, job.model.ModelID(), job, result)
		return panelRecord(job, result), nil
	}

	fallbackKey := models.FallbackFor(job.model.ModelID())
	if !o.fallbackEnabled || fallbackKey == "" {
		return domain.PanelRenderRecord{}, err
	}

	fallbackModel, factoryErr := o.factory(fallbackKey)
	if factoryErr != nil {
		slog.Warn("フォールバックモデルを構築できなかったのだ", "fallback", fallbackKey, "error", factoryErr)
		return domain.PanelRenderRecord{}, err
	}

	slog.Warn("フォールバックモデルで再試行するのだ",
		"panel", job.panel.PanelNumber, "primary", job.model.ModelID(), "fallback", fallbackKey, "cause", err)
	fallbackResult, fallbackErr := o.generateWithReliability(ctx, fallbackModel, job)
	if fallbackErr != nil {
		job.manifest.AppendNote(fmt.Sprintf(
			"fallback model %s also failed for %s", fallbackKey, job.model.ModelID()))
		return domain.PanelRenderRecord{}, fallbackErr
	}

	job.manifest.AppendNote(fmt.Sprintf(
		"fallback model %s used for %s: %v", fallbackKey, job.model.ModelID(), err))
	fallbackCacheKey := panelcache.ComputeKey(
		fallbackKey, string(job.mode), job.width, job.height,
		job.storyboard.CharacterStyleGuide, job.prompt)
	o.storeInCache(fallbackCacheKey, fallbackKey, job, fallbackResult)

	record := panelRecord(job, fallbackResult)
	if record.ProviderUsage == nil {
		record.ProviderUsage = map[string]any{}
	}
	record.ProviderUsage["fallback_model"] = fallbackKey
	return record, nil
}

// generateWithReliability はプロバイダ呼び出しを (provider:model) の
// サーキットキーで信頼性レイヤーに通します。
func (o *Orchestrator) generateWithReliability(ctx context.Context, model models.ImageModel, job panelJob) (models.PanelImageResult, error) {
	seed := prompts.SeedForStoryboard(job.storyboard)
	executorKey := fmt.Sprintf("%s:%s", model.Provider(), model.ModelID())
	return reliability.Run(ctx, executorKey, o.policy, o.breaker, func(attemptCtx context.Context) (models.PanelImageResult, error) {
		return model.GeneratePanelImage(attemptCtx, models.PanelImageRequest{
			PanelNumber:    job.panel.PanelNumber,
			Prompt:         job.prompt,
			NegativePrompt: o.builder.BuildNegativePrompt(job.textMode),
			Width:          job.width,
			Height:         job.height,
			StyleGuide:     job.storyboard.CharacterStyleGuide,
			OutputPath:     job.outputPath,
			Seed:           &seed,
			DryRun:         job.dryRun,
		})
	})
}

func (o *Orchestrator) storeInCache(cacheKey, modelKey string, job panelJob, result models.PanelImageResult) {
	if err := o.cache.Store(cacheKey, panelcache.Entry{
		ImagePath:  result.ImagePath,
		ModelKey:   modelKey,
		Mode:       string(job.mode),
		PromptHash: domain.SHA256Text(job.prompt),
		StoredAt:   domain.UTCTimestamp(),
	}); err != nil {
		slog.Warn("パネルキャッシュへの保存に失敗したのだ", "error", err)
	}
}

func panelRecord(job panelJob, result models.PanelImageResult) domain.PanelRenderRecord {
	return domain.PanelRenderRecord{
		PanelNumber:      job.panel.PanelNumber,
		PromptPath:       job.promptPath,
		ImagePath:        result.ImagePath,
		EstimatedCostUSD: result.EstimatedCostUSD,
		ProviderUsage:    result.ProviderUsage,
	}
}

// abort は失敗を分類し、部分マニフェストを永続化してからエラーを
// 呼び出し側へ返します。
func (o *Orchestrator) abort(manifest *domain.RenderManifest, manifestPath string, cause error) (*domain.RenderManifest, error) {
	kind, message := taxonomy.Classify(cause)
	manifest.ErrorKind = string(kind)
	manifest.ErrorMessage = message
	manifest.TotalEstimatedCostUSD = roundCost(manifest.PanelRecords)
	if len(manifest.PanelRecords) > 0 {
		manifest.CompletionStatus = domain.CompletionPartialSuccess
	} else {
		manifest.CompletionStatus = domain.CompletionFailure
	}

	if err := artifact.WriteJSON(manifestPath, manifest); err != nil {
		slog.Error("失敗マニフェストの永続化に失敗したのだ", "path", manifestPath, "error", err)
	}
	slog.Error("レンダリングを中断するのだ",
		"model", manifest.ModelKey, "status", manifest.CompletionStatus, "error_kind", manifest.ErrorKind)
	return manifest, cause
}

func roundCost(records []domain.PanelRenderRecord) float64 {
	total := 0.0
	for _, record := range records {
		total += record.EstimatedCostUSD
	}
	return math.Round(total*10000) / 10000
}

// copyArtifact はキャッシュ済み画像を実行の出力位置へ複製します。
func copyArtifact(sourcePath, destPath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read cached artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to copy cached artifact: %w", err)
	}
	return nil
}
