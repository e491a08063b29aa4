// Package pipeline は CLI コマンドから呼ばれる実行フローの束ね役なのだ。
// 依存の組み立ては internal/builder に、ドメインロジックは pkg 側に
// 委ね、ここでは入力の解決と各ステージの順序付けだけを行うのだ。
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shouni/go-comic-tutor/internal/builder"
	"github.com/shouni/go-comic-tutor/internal/config"
	"github.com/shouni/go-comic-tutor/pkg/artifact"
	"github.com/shouni/go-comic-tutor/pkg/critique"
	"github.com/shouni/go-comic-tutor/pkg/domain"
	"github.com/shouni/go-comic-tutor/pkg/presets"
	"github.com/shouni/go-comic-tutor/pkg/render"
	"github.com/shouni/go-comic-tutor/pkg/taxonomy"
)

// DefaultStage は批評ループの既定ステージ名なのだ。
const DefaultStage = "storyboard"

// themeStyles はプリセットのテーマ名をグローバルスタイル指定へ写すのだ。
var themeStyles = map[string]string{
	"clean-whiteboard": "Clean whiteboard aesthetic: white background, thin marker linework, minimal shading, generous negative space.",
	"textbook-modern":  "Modern textbook aesthetic: muted two-tone palette, crisp vector-like shapes, subtle grid alignment, print-quality clarity.",
}

// GateBlockedError は strict 批評ゲートがレンダリングを拒否したことを
// 示すのだ。プロバイダ障害とは別系統の、意図された停止なのだ。
type GateBlockedError struct {
	RunID         string
	Stage         string
	CriticalCount int
	MajorCount    int
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("critique gate blocked render for run %s (stage %s): %d critical, %d major issues",
		e.RunID, e.Stage, e.CriticalCount, e.MajorCount)
}

// ExecuteRender は絵コンテの読み込みから批評ゲート、レンダリング、
// 公開までのフルパイプラインを実行するのだ。
func ExecuteRender(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	preset, err := resolvePreset(appCtx)
	if err != nil {
		return err
	}

	storyboard, err := loadStoryboard(ctx, appCtx, cfg.Options.StoryboardFile)
	if err != nil {
		return err
	}
	reviewContext, err := loadReviewContext(ctx, appCtx, storyboard)
	if err != nil {
		return err
	}

	runID := cfg.Options.RunID
	if runID == "" {
		runID = artifact.NewRunID()
	}
	paths, err := appCtx.Store.CreateRun(domain.RunConfig{
		RunID:         runID,
		Topic:         storyboard.Topic,
		AudienceLevel: storyboard.AudienceLevel,
		PanelCount:    len(storyboard.Panels),
		Mode:          runMode(appCtx, preset),
		ImageTextMode: imageTextMode(appCtx, preset),
	})
	if err != nil {
		return err
	}
	if err := artifact.WriteJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
		return err
	}
	slog.Info("run を開始するのだ",
		"run_id", runID, "preset", preset.PresetID, "topic", storyboard.Topic, "panels", len(storyboard.Panels))

	gateMode := critiqueMode(appCtx, preset)
	if gateMode != domain.CritiqueModeOff {
		result, err := runCritiqueLoop(ctx, appCtx, preset, gateMode, runID, paths, storyboard, reviewContext)
		if err != nil {
			return err
		}
		storyboard = result.Storyboard
		if result.RewriteCount > 0 {
			if err := artifact.WriteJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
				return err
			}
		}
		if gateMode == domain.CritiqueModeStrict && critique.ShouldBlockRender(result.FinalReport) {
			gateErr := &GateBlockedError{
				RunID:         runID,
				Stage:         stageName(appCtx),
				CriticalCount: result.FinalReport.BlockingIssueCount,
				MajorCount:    result.FinalReport.MajorIssueCount,
			}
			if regErr := appCtx.Store.AppendRegistry(map[string]any{
				"run_id": runID,
				"event":  "render_blocked",
				"stage":  gateErr.Stage,
			}); regErr != nil {
				slog.Warn("実験レジストリへの追記に失敗したのだ", "error", regErr)
			}
			slog.Error("批評ゲートがレンダリングを拒否したのだ",
				"run_id", runID, "critical", gateErr.CriticalCount, "major", gateErr.MajorCount)
			return gateErr
		}
	}

	orchestrator := appCtx.BuildRenderOrchestrator(themeStyles[preset.Theme])
	manifest, err := orchestrator.Render(ctx, render.Request{
		RunID:         runID,
		ModelKey:      modelKey(appCtx),
		Mode:          runMode(appCtx, preset),
		ImageTextMode: imageTextMode(appCtx, preset),
		DryRun:        cfg.Options.DryRun,
		Storyboard:    storyboard,
	})
	if err != nil {
		return err
	}

	if cfg.Options.PublishTo != "" {
		if err := publishStrip(ctx, appCtx, paths, manifest.ModelKey, cfg.Options.PublishTo); err != nil {
			return err
		}
	}
	slog.Info("パイプラインが完了したのだ",
		"run_id", runID, "status", manifest.CompletionStatus, "cost_usd", manifest.TotalEstimatedCostUSD)
	return nil
}

// ExecuteCritique は既存またはファイル指定の絵コンテへ批評ループだけを
// 適用するのだ。レンダリングは行わないのだ。
func ExecuteCritique(ctx context.Context, cfg *config.Config) error {
	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	preset, err := resolvePreset(appCtx)
	if err != nil {
		return err
	}

	runID := cfg.Options.RunID
	var paths artifact.RunPaths
	var storyboard *domain.Storyboard

	if runID != "" {
		paths, err = appCtx.Store.OpenRun(runID)
		if err != nil {
			return err
		}
		storyboard = &domain.Storyboard{}
		if err := artifact.ReadJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
			return err
		}
	} else {
		storyboard, err = loadStoryboard(ctx, appCtx, cfg.Options.StoryboardFile)
		if err != nil {
			return err
		}
		runID = artifact.NewRunID()
		paths, err = appCtx.Store.CreateRun(domain.RunConfig{
			RunID:         runID,
			Topic:         storyboard.Topic,
			AudienceLevel: storyboard.AudienceLevel,
			PanelCount:    len(storyboard.Panels),
			Mode:          runMode(appCtx, preset),
			ImageTextMode: imageTextMode(appCtx, preset),
		})
		if err != nil {
			return err
		}
		if err := artifact.WriteJSON(filepath.Join(paths.Root, "storyboard.json"), storyboard); err != nil {
			return err
		}
	}

	reviewContext, err := loadReviewContext(ctx, appCtx, storyboard)
	if err != nil {
		return err
	}

	mode := critiqueMode(appCtx, preset)
	if mode == domain.CritiqueModeOff {
		mode = domain.CritiqueModeWarn
	}
	result, err := runCritiqueLoop(ctx, appCtx, preset, mode, runID, paths, storyboard, reviewContext)
	if err != nil {
		return err
	}
	if result.RewriteCount > 0 {
		if err := artifact.WriteJSON(filepath.Join(paths.Root, "storyboard.json"), result.Storyboard); err != nil {
			return err
		}
	}

	slog.Info("批評が完了したのだ",
		"run_id", runID,
		"verdict", result.FinalReport.OverallVerdict,
		"score", result.FinalReport.OverallScore,
		"rewrites", result.RewriteCount,
		"reports", paths.EvaluationsDir)
	return nil
}

// ExecuteReroll は既存 run のコマ1枚だけを振り直すのだ。
func ExecuteReroll(ctx context.Context, cfg *config.Config) error {
	if cfg.Options.RunID == "" {
		return &taxonomy.InvalidInputError{Reason: "reroll requires --run-id"}
	}
	if cfg.Options.PanelNumber <= 0 {
		return &taxonomy.InvalidInputError{Reason: "reroll requires a positive --panel"}
	}

	appCtx, err := builder.NewAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	preset, err := resolvePreset(appCtx)
	if err != nil {
		return err
	}

	orchestrator := appCtx.BuildRenderOrchestrator(themeStyles[preset.Theme])
	manifest, err := orchestrator.RerollPanel(ctx, render.RerollRequest{
		RunID:         cfg.Options.RunID,
		ModelKey:      modelKey(appCtx),
		PanelNumber:   cfg.Options.PanelNumber,
		Mode:          runMode(appCtx, preset),
		ImageTextMode: imageTextMode(appCtx, preset),
		SeedOffset:    time.Now().UnixNano() % 100000,
		DryRun:        cfg.Options.DryRun,
	})
	if err != nil {
		return err
	}
	slog.Info("リロールが完了したのだ",
		"run_id", cfg.Options.RunID, "panel", cfg.Options.PanelNumber, "cost_usd", manifest.TotalEstimatedCostUSD)
	return nil
}

// runCritiqueLoop は監査シンク付きで批評→書き換えループを回すのだ。
func runCritiqueLoop(
	ctx context.Context,
	appCtx *builder.AppContext,
	preset presets.RunPreset,
	mode domain.CritiqueMode,
	runID string,
	paths artifact.RunPaths,
	storyboard *domain.Storyboard,
	reviewContext critique.Context,
) (critique.LoopResult, error) {
	maxIterations := preset.CritiqueMaxIterations
	if appCtx.Options.MaxIterations >= 0 {
		maxIterations = appCtx.Options.MaxIterations
	}
	autoRewrite := preset.AutoRewrite && !appCtx.Options.NoAutoRewrite

	return critique.RunLoop(ctx, critique.LoopRequest{
		RunID:         runID,
		Stage:         stageName(appCtx),
		Mode:          mode,
		Storyboard:    storyboard,
		Context:       reviewContext,
		MaxIterations: maxIterations,
		AutoRewrite:   autoRewrite,
		Sink:          artifact.NewCritiqueSink(paths.EvaluationsDir),
	})
}

// loadStoryboard は Reader 経由（ローカル or gs://）で絵コンテを読むのだ。
func loadStoryboard(ctx context.Context, appCtx *builder.AppContext, path string) (*domain.Storyboard, error) {
	if path == "" {
		return nil, &taxonomy.InvalidInputError{Reason: "a storyboard file is required (--storyboard)"}
	}
	rc, err := appCtx.Reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("絵コンテ '%s' の読み込みに失敗しました: %w", path, err)
	}
	defer rc.Close()

	storyboard := &domain.Storyboard{}
	if err := json.NewDecoder(rc).Decode(storyboard); err != nil {
		return nil, &taxonomy.SchemaError{Err: fmt.Errorf("invalid storyboard JSON in %s: %w", path, err)}
	}
	if err := storyboard.Validate(); err != nil {
		return nil, &taxonomy.SchemaError{Err: err}
	}
	return storyboard, nil
}

// reviewContextFile は --context で渡す学習コンテキストのJSON形式なのだ。
type reviewContextFile struct {
	ExpectedKeyPoints []string `json:"expected_key_points"`
	Misconceptions    []string `json:"misconceptions"`
	AudienceLevel     string   `json:"audience_level,omitempty"`
}

// loadReviewContext は任意の --context ファイルを読み、未指定の場合は
// 絵コンテから最小限のコンテキストを合成するのだ。
func loadReviewContext(ctx context.Context, appCtx *builder.AppContext, storyboard *domain.Storyboard) (critique.Context, error) {
	result := critique.Context{AudienceLevel: storyboard.AudienceLevel}
	path := appCtx.Options.ContextFile
	if path == "" {
		return result, nil
	}

	rc, err := appCtx.Reader.Open(ctx, path)
	if err != nil {
		return result, fmt.Errorf("コンテキスト '%s' の読み込みに失敗しました: %w", path, err)
	}
	defer rc.Close()

	var payload reviewContextFile
	if err := json.NewDecoder(rc).Decode(&payload); err != nil {
		return result, &taxonomy.SchemaError{Err: fmt.Errorf("invalid context JSON in %s: %w", path, err)}
	}
	result.ExpectedKeyPoints = payload.ExpectedKeyPoints
	result.Misconceptions = payload.Misconceptions
	if payload.AudienceLevel != "" {
		result.AudienceLevel = payload.AudienceLevel
	}
	return result, nil
}

// publishStrip は完成ストリップを Writer 経由で公開するのだ。
func publishStrip(ctx context.Context, appCtx *builder.AppContext, paths artifact.RunPaths, modelKey, target string) error {
	stripPath := filepath.Join(paths.CompositeDir, modelKey, "strip.png")
	data, err := os.ReadFile(stripPath)
	if err != nil {
		return fmt.Errorf("完成ストリップの読み込みに失敗しました: %w", err)
	}
	if err := appCtx.Writer.Write(ctx, target, bytes.NewReader(data), "image/png"); err != nil {
		return fmt.Errorf("完成ストリップの公開に失敗しました: %w", err)
	}
	slog.Info("完成ストリップを公開したのだ", "target", target)
	return nil
}

// resolvePreset はプリセットIDをレジストリで解決するのだ。
func resolvePreset(appCtx *builder.AppContext) (presets.RunPreset, error) {
	presetID := appCtx.Options.PresetID
	if presetID == "" {
		presetID = config.DefaultPreset
	}
	return appCtx.Presets.Get(presetID)
}

// 以下のヘルパーは「CLIフラグが指定されていればプリセットより優先」
// という解決規則を一箇所に集めたものなのだ。

func runMode(appCtx *builder.AppContext, preset presets.RunPreset) domain.RunMode {
	if appCtx.Options.Mode != "" {
		return domain.RunMode(appCtx.Options.Mode)
	}
	return preset.Mode
}

func critiqueMode(appCtx *builder.AppContext, preset presets.RunPreset) domain.CritiqueMode {
	if appCtx.Options.CritiqueMode != "" {
		return domain.CritiqueMode(appCtx.Options.CritiqueMode)
	}
	return preset.CritiqueMode
}

func imageTextMode(appCtx *builder.AppContext, preset presets.RunPreset) domain.ImageTextMode {
	if appCtx.Options.ImageTextMode != "" {
		return domain.ImageTextMode(appCtx.Options.ImageTextMode)
	}
	return preset.ImageTextMode
}

func modelKey(appCtx *builder.AppContext) string {
	if appCtx.Options.ModelKey != "" {
		return appCtx.Options.ModelKey
	}
	return config.DefaultModel
}

func stageName(appCtx *builder.AppContext) string {
	if appCtx.Options.Stage != "" {
		return appCtx.Options.Stage
	}
	return DefaultStage
}
