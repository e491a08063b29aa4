package models

import (
	"fmt"
	"strings"

	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/go-comic-tutor/pkg/taxonomy"
)

// modelMeta はモデルキーごとの能力メタデータです。
type modelMeta struct {
	provider      string
	tier          Tier
	experimental  bool
	fallbackModel string
}

// modelKeys はCLI表示やエラーメッセージで使う安定した列挙順です。
var modelKeys = []string{
	"gpt-image-1-mini",
	"gpt-image-1",
	"gpt-image-1.5",
	"gemini-2.5-flash-image",
	"gemini-3-pro-image-preview",
	"gemini-3.1-flash-image-preview",
}

var modelMetadata = map[string]modelMeta{
	"gpt-image-1-mini": {provider: "openai", tier: TierCheap},
	"gpt-image-1":      {provider: "openai", tier: TierMid},
	"gpt-image-1.5":    {provider: "openai", tier: TierPremium},
	"gemini-2.5-flash-image": {
		provider: "google", tier: TierCheap,
	},
	"gemini-3-pro-image-preview": {
		provider: "google", tier: TierPremium, fallbackModel: "gemini-2.5-flash-image",
	},
	"gemini-3.1-flash-image-preview": {
		provider: "google", tier: TierMid, experimental: true, fallbackModel: "gemini-2.5-flash-image",
	},
}

// ModelDescriptor はCLIやレポート表示向けの展開済みメタデータです。
type ModelDescriptor struct {
	Key           string `json:"key"`
	Provider      string `json:"provider"`
	Tier          Tier   `json:"tier"`
	Experimental  bool   `json:"experimental"`
	FallbackModel string `json:"fallback_model,omitempty"`
}

// ListModels はサポートしているモデルキーを安定順で返します。
func ListModels() []string {
	out := make([]string, len(modelKeys))
	copy(out, modelKeys)
	return out
}

// ListModelDescriptors は能力フラグ付きのモデル一覧を返します。
func ListModelDescriptors() []ModelDescriptor {
	descriptors := make([]ModelDescriptor, 0, len(modelKeys))
	for _, key := range modelKeys {
		meta := modelMetadata[key]
		descriptors = append(descriptors, ModelDescriptor{
			Key:           key,
			Provider:      meta.provider,
			Tier:          meta.tier,
			Experimental:  meta.experimental,
			FallbackModel: meta.fallbackModel,
		})
	}
	return descriptors
}

// FallbackFor はモデルキーに設定された明示的なフォールバック先を
// 返します。未設定または未知のキーでは空文字を返します。
func FallbackFor(modelKey string) string {
	return modelMetadata[modelKey].fallbackModel
}

// ProviderFor はモデルキーのプロバイダ名を返します。
func ProviderFor(modelKey string) string {
	meta, ok := modelMetadata[modelKey]
	if !ok {
		return "unknown"
	}
	return meta.provider
}

// IsSupported はモデルキーがレジストリに登録済みかを返します。
func IsSupported(modelKey string) bool {
	_, ok := modelMetadata[modelKey]
	return ok
}

// FactoryConfig はアダプター生成に必要な資格情報と依存です。
// AIClient が nil の場合、Gemini 系モデルはプレースホルダー描画に
// 固定されます（ドライランやオフラインテスト向け）。
type FactoryConfig struct {
	OpenAIAPIKey             string
	HTTPClient               httpkit.ClientInterface
	AIClient                 gemini.GenerativeModel
	EnableExperimentalModels bool
}

// NewModel はモデルキーに対応するアダプターを生成します。
// 未知のキーは入力不正、実験的モデルはフラグ無効のままだと
// 専用エラーになり、どちらも呼び出し前に弾かれます。
func NewModel(modelKey string, cfg FactoryConfig) (ImageModel, error) {
	meta, ok := modelMetadata[modelKey]
	if !ok {
		return nil, &taxonomy.InvalidInputError{
			Reason: fmt.Sprintf("unsupported model '%s'. Supported: %s", modelKey, strings.Join(ListModels(), ", ")),
		}
	}
	if meta.experimental && !cfg.EnableExperimentalModels {
		return nil, &taxonomy.ExperimentalModelError{ModelKey: modelKey}
	}

	if meta.provider == "openai" {
		return NewOpenAIModel(modelKey, meta.tier, cfg.OpenAIAPIKey), nil
	}
	return NewGeminiModel(modelKey, meta.tier, cfg.HTTPClient, cfg.AIClient)
}
