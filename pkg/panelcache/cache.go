// Package panelcache は、レンダリング済みパネル画像のコンテンツ
// アドレッサブルなキャッシュです。同一の (model, mode, size, style,
// prompt) 組に対する再レンダリングをゼロコストにします。
package panelcache

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shouni/go-comic-tutor/pkg/domain"
	"github.com/shouni/go-comic-tutor/pkg/store"
)

const (
	hotLayerExpiration = 30 * time.Minute
	hotLayerCleanup    = 1 * time.Hour
)

// Entry はキャッシュキー1件分の記録です。書き込み後は同一キーでの
// 再生成による上書き以外で変更されません。
type Entry struct {
	ImagePath  string `json:"image_path"`
	ModelKey   string `json:"model_key"`
	Mode       string `json:"mode"`
	PromptHash string `json:"prompt_hash"`
	StoredAt   string `json:"stored_at,omitempty"`
}

// Cache は永続 KeyValueStore と go-cache のホットレイヤーの二段構えです。
// 永続層は無期限に保持します（保持量は受け入れ済みのトレードオフ）。
type Cache struct {
	kv  store.KeyValueStore
	hot *gocache.Cache
}

// New はキャッシュを初期化します。
func New(kv store.KeyValueStore) *Cache {
	return &Cache{
		kv:  kv,
		hot: gocache.New(hotLayerExpiration, hotLayerCleanup),
	}
}

// ComputeKey は正規化した入力フィールドの連結に対する純粋なハッシュです。
// 同一入力は常に同一キーを生み、プロンプトやスタイルの1文字の差でも
// 別キーになります。
func ComputeKey(modelKey, mode string, width, height int, styleText, prompt string) string {
	material := strings.Join([]string{
		strings.TrimSpace(modelKey),
		strings.TrimSpace(mode),
		fmt.Sprintf("%dx%d", width, height),
		strings.TrimSpace(styleText),
		strings.TrimSpace(prompt),
	}, "|")
	return domain.SHA256Text(material)
}

// Lookup はキーに対応するエントリを返します。参照先の画像ファイルが
// 外部で削除されていた場合はエラーではなく miss として扱います。
func (c *Cache) Lookup(key string) (Entry, bool) {
	if cached, ok := c.hot.Get(key); ok {
		entry := cached.(Entry)
		if artifactExists(entry.ImagePath) {
			return entry, true
		}
		c.hot.Delete(key)
	}

	var entry Entry
	found, err := c.kv.Get(key, &entry)
	if err != nil {
		slog.Warn("panel cache read failed, treating as miss", "key", key, "error", err)
		return Entry{}, false
	}
	if !found {
		return Entry{}, false
	}
	if !artifactExists(entry.ImagePath) {
		slog.Info("cached artifact missing on disk, treating as miss", "key", key, "path", entry.ImagePath)
		return Entry{}, false
	}
	c.hot.Set(key, entry, gocache.DefaultExpiration)
	return entry, true
}

// Store はキーのエントリを無条件に上書きします。
func (c *Cache) Store(key string, entry Entry) error {
	if entry.StoredAt == "" {
		entry.StoredAt = domain.UTCTimestamp()
	}
	if err := c.kv.Set(key, entry); err != nil {
		return fmt.Errorf("failed to persist panel cache entry: %w", err)
	}
	c.hot.Set(key, entry, gocache.DefaultExpiration)
	return nil
}

func artifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
