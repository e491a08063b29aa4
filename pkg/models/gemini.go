package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// PanelGenerator は gemini-image-kit のジェネレーター面です。
// テストではこの面をスタブに差し替えます。
type PanelGenerator interface {
	GenerateMangaPanel(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error)
}

// GeminiModel は Gemini 画像モデルのアダプターです。
type GeminiModel struct {
	modelID string
	tier    Tier
	adapter PanelGenerator
}

// NewGeminiModel は画像処理コアとジェネレーターを組み立てます。
// aiClient が無い場合はライブ生成を持たないアダプターになり、
// 呼び出しは常にプレースホルダー描画へ落ちます。
func NewGeminiModel(modelID string, tier Tier, httpClient httpkit.ClientInterface, aiClient gemini.GenerativeModel) (*GeminiModel, error) {
	model := &GeminiModel{modelID: modelID, tier: tier}
	if aiClient == nil {
		return model, nil
	}

	imgCache := cache.New(30*time.Minute, 1*time.Hour)
	core, err := generator.NewGeminiImageCore(httpClient, imgCache, 1*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini image core: %w", err)
	}
	imgGen, err := generator.NewGeminiGenerator(core, aiClient, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini generator: %w", err)
	}
	model.adapter = imgGen
	return model, nil
}

// NewGeminiModelWithAdapter は構築済みジェネレーターを注入します。
func NewGeminiModelWithAdapter(modelID string, tier Tier, adapter PanelGenerator) *GeminiModel {
	return &GeminiModel{modelID: modelID, tier: tier, adapter: adapter}
}

func (m *GeminiModel) ModelID() string  { return m.modelID }
func (m *GeminiModel) Provider() string { return "google" }
func (m *GeminiModel) ModelTier() Tier  { return m.tier }

// GeneratePanelImage は1コマ分の画像を生成して保存します。
func (m *GeminiModel) GeneratePanelImage(ctx context.Context, req PanelImageRequest) (PanelImageResult, error) {
	prompt := finalPrompt(req)
	if req.DryRun || m.adapter == nil {
		if err := writePlaceholderImage(req.OutputPath, m.modelID+" (dry-run)", prompt, req.Width, req.Height); err != nil {
			return PanelImageResult{}, err
		}
		return PanelImageResult{
			ImagePath:        req.OutputPath,
			ProviderUsage:    map[string]any{"mode": "dry_run"},
			EstimatedCostUSD: EstimateCost(m.modelID, 1),
		}, nil
	}

	resp, err := m.adapter.GenerateMangaPanel(ctx, imagedom.ImageGenerationRequest{
		Prompt:         prompt,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
		ReferenceURL:   req.ReferenceURL,
		AspectRatio:    aspectRatio(req.Width, req.Height),
	})
	if err != nil {
		return PanelImageResult{}, err
	}
	if resp == nil || len(resp.Data) == 0 {
		return PanelImageResult{}, fmt.Errorf("no image bytes returned for %s", m.modelID)
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return PanelImageResult{}, fmt.Errorf("failed to create image output dir: %w", err)
	}
	if err := os.WriteFile(req.OutputPath, resp.Data, 0o644); err != nil {
		return PanelImageResult{}, fmt.Errorf("failed to write panel image: %w", err)
	}

	return PanelImageResult{
		ImagePath:        req.OutputPath,
		ProviderUsage:    map[string]any{"mode": "live", "mime_type": resp.MimeType},
		EstimatedCostUSD: EstimateCost(m.modelID, 1),
	}, nil
}

// aspectRatio は出力サイズを Gemini が受け付ける比率表現へ丸めます。
func aspectRatio(width, height int) string {
	switch {
	case width == height:
		return "1:1"
	case width > height:
		return "16:9"
	default:
		return "9:16"
	}
}
