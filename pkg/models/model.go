package models

import (
	"context"
	"fmt"
)

// Tier はモデルの価格帯区分です。
type Tier string

const (
	TierCheap   Tier = "cheap"
	TierMid     Tier = "mid"
	TierPremium Tier = "premium"
)

// PanelImageRequest はプロバイダ非依存のコマ画像生成リクエストです。
type PanelImageRequest struct {
	PanelNumber    int
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	StyleGuide     string
	OutputPath     string
	Seed           *int64
	ReferenceURL   string
	DryRun         bool
}

// PanelImageResult はプロバイダ非依存のコマ画像生成結果です。
type PanelImageResult struct {
	ImagePath        string
	ProviderUsage    map[string]any
	EstimatedCostUSD float64
}

// ImageModel は画像モデルアダプターの共通インターフェースです。
// 実装はプロバイダ固有の失敗を素のエラーとして返し、リトライや
// サーキットの判断は呼び出し側の信頼性レイヤーに委ねます。
type ImageModel interface {
	ModelID() string
	Provider() string
	ModelTier() Tier
	GeneratePanelImage(ctx context.Context, req PanelImageRequest) (PanelImageResult, error)
}

// finalPrompt はスタイルガイドとコマ番号をプロンプトへ前置します。
// 全プロバイダで同じ合成規則を使うことで、モデル比較時の条件を揃えます。
func finalPrompt(req PanelImageRequest) string {
	return fmt.Sprintf("%s\n\nPanel %d\n%s", req.StyleGuide, req.PanelNumber, req.Prompt)
}
