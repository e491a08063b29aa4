package models

import "math"

// modelEstimatedCostUSD は1枚あたりの概算コストです。比較レポート用の
// 粗い目安であり、請求額の代わりにはなりません。
var modelEstimatedCostUSD = map[string]float64{
	"gpt-image-1-mini":           0.01,
	"gpt-image-1":                0.03,
	"gpt-image-1.5":              0.08,
	"gemini-2.5-flash-image":     0.012,
	"gemini-3-pro-image-preview": 0.07,
}

const defaultUnitCostUSD = 0.02

// EstimateCost はモデルとコマ数から概算レンダリングコストを返します。
// 未登録モデルには既定の単価を適用します。
func EstimateCost(modelKey string, panelCount int) float64 {
	unitCost, ok := modelEstimatedCostUSD[modelKey]
	if !ok {
		unitCost = defaultUnitCostUSD
	}
	return math.Round(unitCost*float64(panelCount)*10000) / 10000
}
