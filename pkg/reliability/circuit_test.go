package reliability

import (
	"testing"
	"time"

	"github.com/shouni/go-comic-tutor/pkg/store"
)

func testPolicy() Policy {
	return Policy{
		Timeout:              time.Second,
		MaxRetries:           0,
		Backoff:              0,
		CircuitFailThreshold: 3,
		CircuitCooldown:      10 * time.Minute,
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker(store.NewMemoryStore())
	cb.now = func() time.Time { return current }
	policy := testPolicy()
	key := "google:gemini-3-pro-image-preview"

	t.Run("しきい値未満では試行可能のままなのだ", func(t *testing.T) {
		cb.RecordFailure(key, "boom 1", policy)
		cb.RecordFailure(key, "boom 2", policy)
		if !cb.CanAttempt(key) {
			t.Fatal("しきい値前にサーキットが開いてしまったのだ")
		}
	})

	t.Run("しきい値到達でクールダウンが始まるのだ", func(t *testing.T) {
		cb.RecordFailure(key, "boom 3", policy)
		if cb.CanAttempt(key) {
			t.Fatal("しきい値到達後も試行できてしまうのだ")
		}
	})

	t.Run("クールダウン経過で再び試行可能になるのだ", func(t *testing.T) {
		current = current.Add(policy.CircuitCooldown + time.Second)
		if !cb.CanAttempt(key) {
			t.Fatal("クールダウン経過後も閉じたままなのだ")
		}
	})

	t.Run("再オープンには新しい失敗ストリークが必要なのだ", func(t *testing.T) {
		// トリップ時にカウントはゼロへ戻っているので、1回の失敗では開かない
		cb.RecordFailure(key, "boom again", policy)
		if !cb.CanAttempt(key) {
			t.Fatal("1回の失敗で再オープンしてしまったのだ")
		}
	})
}

func TestCircuitBreaker_RecordSuccessClearsState(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker(store.NewMemoryStore())
	cb.now = func() time.Time { return current }
	policy := testPolicy()
	key := "openai:gpt-image-1"

	cb.RecordFailure(key, "boom", policy)
	cb.RecordFailure(key, "boom", policy)
	cb.RecordSuccess(key)

	// 成功でカウントが消えているので、2回失敗してもまだ開かない
	cb.RecordFailure(key, "boom", policy)
	cb.RecordFailure(key, "boom", policy)
	if !cb.CanAttempt(key) {
		t.Fatal("成功後のカウントリセットが効いていないのだ")
	}
}

func TestCircuitBreaker_StateSurvivesRestart(t *testing.T) {
	kv := store.NewMemoryStore()
	current := time.Unix(1_700_000_000, 0)
	policy := testPolicy()
	key := "google:gemini-3-pro-image-preview"

	first := NewCircuitBreaker(kv)
	first.now = func() time.Time { return current }
	for i := 0; i < policy.CircuitFailThreshold; i++ {
		first.RecordFailure(key, "boom", policy)
	}

	// 同じストアを共有する新しいインスタンス（プロセス再起動を模す）
	second := NewCircuitBreaker(kv)
	second.now = func() time.Time { return current }
	if second.CanAttempt(key) {
		t.Fatal("再起動後にクールダウンが引き継がれていないのだ")
	}
}
