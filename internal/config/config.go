package config

import (
	"strconv"
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel            = "gemini-2.5-flash-image"
	DefaultPreset           = "fast-draft"
	DefaultOutputRoot       = "output/runs"      // 各 run のアーティファクトを配置するルートディレクトリなのだ
	DefaultCacheDB          = "output/panels.db" // パネル画像キャッシュのSQLiteファイルなのだ
	DefaultHTTPTimeout      = 30 * time.Second   // Gemini系プロバイダとの通信タイムアウト
	DefaultProviderTimeout  = 120 * time.Second  // 1パネル生成あたりの打ち切り時間
	DefaultProviderRetries  = 2                  // タイムアウト後の再試行回数
	DefaultProviderBackoff  = 2 * time.Second    // 再試行間の基本待機時間（指数的に伸びるのだ）
	DefaultCircuitThreshold = 4                  // この回数連続で失敗したらサーキットを開くのだ
	DefaultCircuitCooldown  = 10 * time.Minute   // サーキットが開いてから閉じ直すまでの時間
	DefaultRateLimit        = 5 * time.Second    // プロバイダ呼び出しの最小間隔なのだ
)

// Config はアプリケーション全体の環境設定（APIキーや信頼性パラメータ）を保持する構造体なのだ。
type Config struct {
	OpenAIAPIKey string
	GeminiAPIKey string

	OutputRoot string
	CacheDB    string

	ProviderTimeout  time.Duration
	ProviderRetries  int
	ProviderBackoff  time.Duration
	CircuitThreshold int
	CircuitCooldown  time.Duration
	RateLimit        time.Duration

	EnableExperimentalModels bool

	Options RunOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		OpenAIAPIKey:             envutil.GetEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:             envutil.GetEnv("GEMINI_API_KEY", ""),
		OutputRoot:               envutil.GetEnv("COMIC_TUTOR_OUTPUT_ROOT", DefaultOutputRoot),
		CacheDB:                  envutil.GetEnv("COMIC_TUTOR_CACHE_DB", DefaultCacheDB),
		ProviderTimeout:          durationEnv("COMIC_TUTOR_PROVIDER_TIMEOUT", DefaultProviderTimeout),
		ProviderRetries:          intEnv("COMIC_TUTOR_PROVIDER_RETRIES", DefaultProviderRetries),
		ProviderBackoff:          durationEnv("COMIC_TUTOR_PROVIDER_BACKOFF", DefaultProviderBackoff),
		CircuitThreshold:         intEnv("COMIC_TUTOR_CIRCUIT_THRESHOLD", DefaultCircuitThreshold),
		CircuitCooldown:          durationEnv("COMIC_TUTOR_CIRCUIT_COOLDOWN", DefaultCircuitCooldown),
		RateLimit:                durationEnv("COMIC_TUTOR_RATE_LIMIT", DefaultRateLimit),
		EnableExperimentalModels: boolEnv("COMIC_TUTOR_ENABLE_EXPERIMENTAL", false),
	}
	return cfg
}

// RunOptions は CLI フラグから渡される実行時のパラメータなのだ。
type RunOptions struct {
	// ソース入力関連
	StoryboardFile string // --storyboard
	PresetID       string // --preset
	PresetFile     string // --preset-file
	ContextFile    string // --context
	PublishTo      string // --publish-to: ローカルパスまたは gs://... なのだ

	// 実行対象
	RunID       string // --run-id: 既存 run の再評価やリロールで使うのだ
	ModelKey    string // --model
	PanelNumber int    // --panel: reroll 対象のパネル番号

	// 挙動制御
	Mode          string // --mode: draft / publish
	CritiqueMode  string // --critique: off / warn / strict
	ImageTextMode string // --image-text: none / minimal / full
	Stage         string // --stage: 批評対象ステージ名
	MaxIterations int    // --max-iterations
	NoAutoRewrite bool   // --no-auto-rewrite
	NoFallback    bool   // --no-fallback
	DryRun        bool   // --dry-run
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func boolEnv(key string, fallback bool) bool {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
