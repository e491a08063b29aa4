package builder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-tutor/internal/config"
	"github.com/shouni/go-comic-tutor/pkg/artifact"
	"github.com/shouni/go-comic-tutor/pkg/models"
	"github.com/shouni/go-comic-tutor/pkg/panelcache"
	"github.com/shouni/go-comic-tutor/pkg/presets"
	"github.com/shouni/go-comic-tutor/pkg/prompts"
	"github.com/shouni/go-comic-tutor/pkg/reliability"
	"github.com/shouni/go-comic-tutor/pkg/render"
	"github.com/shouni/go-comic-tutor/pkg/store"

	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// NewAppContext は設定から依存一式を組み立てるのだ。
// GEMINI_API_KEY が未設定の場合、Geminiクライアントは nil のまま
// 進み、Gemini系モデルはプレースホルダー生成にフォールバックする。
func NewAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	httpClient := httpkit.New(config.DefaultHTTPTimeout)

	var aiClient gemini.GenerativeModel
	if cfg.GeminiAPIKey != "" {
		client, err := InitializeAIClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		aiClient = client
	} else {
		slog.Warn("GEMINI_API_KEY が未設定なのだ。Gemini系モデルはプレースホルダー出力になるのだ")
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	artifactStore, err := artifact.NewStore(cfg.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output root: %w", err)
	}

	cacheKV, err := store.NewSQLiteStore(cfg.CacheDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	registry := presets.NewRegistry()
	if cfg.Options.PresetFile != "" {
		if err := registry.LoadOverrides(cfg.Options.PresetFile); err != nil {
			cacheKV.Close()
			return nil, fmt.Errorf("failed to load preset overrides: %w", err)
		}
	}

	return &AppContext{
		Config:     cfg,
		Options:    cfg.Options,
		Reader:     reader,
		Writer:     writer,
		Store:      artifactStore,
		Cache:      panelcache.New(cacheKV),
		Breaker:    reliability.NewCircuitBreaker(cacheKV),
		Presets:    registry,
		aiClient:   aiClient,
		httpClient: httpClient,
		cacheKV:    cacheKV,
	}, nil
}

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultGeminiTemperature = float32(0.2)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// ReliabilityPolicy は環境設定を実行ポリシーへ写します。
func (a *AppContext) ReliabilityPolicy() reliability.Policy {
	return reliability.Policy{
		Timeout:              a.Config.ProviderTimeout,
		MaxRetries:           a.Config.ProviderRetries,
		Backoff:              a.Config.ProviderBackoff,
		CircuitFailThreshold: a.Config.CircuitThreshold,
		CircuitCooldown:      a.Config.CircuitCooldown,
	}
}

// ModelFactory はモデルキーからアダプターを解決するクロージャを返します。
func (a *AppContext) ModelFactory() render.ModelFactory {
	factoryConfig := models.FactoryConfig{
		OpenAIAPIKey:             a.Config.OpenAIAPIKey,
		HTTPClient:               a.httpClient,
		AIClient:                 a.aiClient,
		EnableExperimentalModels: a.Config.EnableExperimentalModels,
	}
	return func(modelKey string) (models.ImageModel, error) {
		return models.NewModel(modelKey, factoryConfig)
	}
}

// BuildRenderOrchestrator はレンダリング実行に必要な依存を束ねます。
func (a *AppContext) BuildRenderOrchestrator(styleSuffix string) *render.Orchestrator {
	return render.NewOrchestrator(render.Options{
		Store:           a.Store,
		Cache:           a.Cache,
		Breaker:         a.Breaker,
		Policy:          a.ReliabilityPolicy(),
		PromptBuilder:   prompts.NewBuilder(styleSuffix),
		Factory:         a.ModelFactory(),
		Limiter:         rate.NewLimiter(rate.Every(a.Config.RateLimit), 2),
		FallbackEnabled: !a.Options.NoFallback,
	})
}
