package builder

import (
	"github.com/shouni/go-comic-tutor/internal/config"
	"github.com/shouni/go-comic-tutor/pkg/artifact"
	"github.com/shouni/go-comic-tutor/pkg/panelcache"
	"github.com/shouni/go-comic-tutor/pkg/presets"
	"github.com/shouni/go-comic-tutor/pkg/reliability"
	"github.com/shouni/go-comic-tutor/pkg/store"

	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// AppContext は、アプリケーション実行に必要な共通コンテンツを保持する
// これを各パイプラインに渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config        // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、信頼性パラメータなど）。
	Options config.RunOptions     // Optionsは、コマンドラインから渡された実行時の設定です（プリセット、モデルキーなど）。
	Reader  remoteio.InputReader  // Readerは、絵コンテや学習コンテキストの読み込みに使用する入力元です。
	Writer  remoteio.OutputWriter // Writerは、完成ストリップやレポートの公開に使用する出力先です。

	Store   *artifact.Store             // Storeは、run ディレクトリと実験レジストリの管理面です。
	Cache   *panelcache.Cache           // Cacheは、プロンプト内容にアドレスされたパネル画像キャッシュです。
	Breaker *reliability.CircuitBreaker // Breakerは、プロバイダ単位のサーキットブレーカーです。
	Presets *presets.Registry           // Presetsは、組み込み＋上書きプリセットのレジストリです。

	aiClient   gemini.GenerativeModel  // aiClient はGeminiの通信に使う共通クライアント
	httpClient httpkit.ClientInterface // httpClient は外部APIとの通信に使う共通クライアント
	cacheKV    *store.SQLiteStore      // cacheKV はキャッシュとブレーカー状態の永続化バックエンド
}

// Close は SQLite バックエンドなどの保持リソースを解放します。
func (a *AppContext) Close() error {
	if a.cacheKV == nil {
		return nil
	}
	return a.cacheKV.Close()
}
