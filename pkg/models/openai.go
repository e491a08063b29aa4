package models

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIModel は GPT Image 系モデルのアダプターです。
type OpenAIModel struct {
	modelID string
	tier    Tier
	opts    []option.RequestOption
	live    bool
}

// NewOpenAIModel は公式 openai-go SDK を使うアダプターを返します。
// APIキーが空の場合はライブ生成を持たず、常にプレースホルダー描画に
// なります。
func NewOpenAIModel(modelID string, tier Tier, apiKey string) *OpenAIModel {
	model := &OpenAIModel{modelID: modelID, tier: tier}
	if apiKey != "" {
		model.opts = []option.RequestOption{option.WithAPIKey(apiKey)}
		model.live = true
	}
	return model
}

func (m *OpenAIModel) ModelID() string  { return m.modelID }
func (m *OpenAIModel) Provider() string { return "openai" }
func (m *OpenAIModel) ModelTier() Tier  { return m.tier }

// GeneratePanelImage は1コマ分の画像を生成して保存します。
func (m *OpenAIModel) GeneratePanelImage(ctx context.Context, req PanelImageRequest) (PanelImageResult, error) {
	prompt := finalPrompt(req)
	if req.DryRun || !m.live {
		if err := writePlaceholderImage(req.OutputPath, m.modelID+" (dry-run)", prompt, req.Width, req.Height); err != nil {
			return PanelImageResult{}, err
		}
		return PanelImageResult{
			ImagePath:        req.OutputPath,
			ProviderUsage:    map[string]any{"mode": "dry_run"},
			EstimatedCostUSD: EstimateCost(m.modelID, 1),
		}, nil
	}

	client := openai.NewClient(m.opts...)
	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:  openai.ImageModel(m.modelID),
		Prompt: prompt,
		Size:   imageSize(req.Width, req.Height),
	})
	if err != nil {
		return PanelImageResult{}, err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return PanelImageResult{}, fmt.Errorf("no image payload returned for %s", m.modelID)
	}

	imageBytes, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return PanelImageResult{}, fmt.Errorf("failed to decode image payload for %s: %w", m.modelID, err)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return PanelImageResult{}, fmt.Errorf("failed to create image output dir: %w", err)
	}
	if err := os.WriteFile(req.OutputPath, imageBytes, 0o644); err != nil {
		return PanelImageResult{}, fmt.Errorf("failed to write panel image: %w", err)
	}

	return PanelImageResult{
		ImagePath:        req.OutputPath,
		ProviderUsage:    map[string]any{"mode": "live"},
		EstimatedCostUSD: EstimateCost(m.modelID, 1),
	}, nil
}

// imageSize は出力サイズを OpenAI が受け付ける離散値へ丸めます。
func imageSize(width, height int) openai.ImageGenerateParamsSize {
	switch {
	case width == height:
		return openai.ImageGenerateParamsSize1024x1024
	case width > height:
		return openai.ImageGenerateParamsSize1536x1024
	default:
		return openai.ImageGenerateParamsSize1024x1536
	}
}
