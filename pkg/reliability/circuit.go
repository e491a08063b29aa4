package reliability

import (
	"log/slog"
	"time"

	"github.com/shouni/go-comic-tutor/pkg/store"
)

// CircuitState は (provider, model) キー1件分のブレーカー状態です。
// プロセス再起動をまたいで永続化されます。
type CircuitState struct {
	FailCount   int    `json:"fail_count"`
	OpenUntil   int64  `json:"open_until_epoch_s"`
	LastError   string `json:"last_error"`
	LastSuccess int64  `json:"last_success_epoch_s,omitempty"`
	LastFailure int64  `json:"last_failure_epoch_s,omitempty"`
}

// CircuitBreaker は永続ストアに裏打ちされたキー別ブレーカーです。
// このコンポーネント自身はエラーを投げず、CanAttempt の判定だけを提供します。
type CircuitBreaker struct {
	kv  store.KeyValueStore
	now func() time.Time
}

// NewCircuitBreaker は KeyValueStore を状態置き場として使うブレーカーを返します。
func NewCircuitBreaker(kv store.KeyValueStore) *CircuitBreaker {
	return &CircuitBreaker{kv: kv, now: time.Now}
}

func (cb *CircuitBreaker) entry(key string) CircuitState {
	var state CircuitState
	found, err := cb.kv.Get(key, &state)
	if err != nil {
		// ストア読み取り失敗は「記録なし」として扱い、呼び出しを妨げない
		slog.Warn("circuit state read failed, treating as empty", "key", key, "error", err)
		return CircuitState{}
	}
	if !found {
		return CircuitState{}
	}
	return state
}

// CanAttempt は open-until が未来にない限り true を返します。
// 記録が存在しないキーは常に試行可能です。
func (cb *CircuitBreaker) CanAttempt(key string) bool {
	return cb.entry(key).OpenUntil <= cb.now().Unix()
}

// OpenUntil はキーのクールダウン期限を返します。開いていなければゼロ値です。
func (cb *CircuitBreaker) OpenUntil(key string) time.Time {
	state := cb.entry(key)
	if state.OpenUntil == 0 {
		return time.Time{}
	}
	return time.Unix(state.OpenUntil, 0)
}

// RecordSuccess は失敗カウントとクールダウンをクリアします。
func (cb *CircuitBreaker) RecordSuccess(key string) {
	state := CircuitState{LastSuccess: cb.now().Unix()}
	if err := cb.kv.Set(key, state); err != nil {
		slog.Warn("circuit state write failed", "key", key, "error", err)
	}
}

// RecordFailure は失敗カウントを進め、しきい値に達したら
// クールダウン窓を開いてカウントをゼロへ戻します。
// 一度開いた後の再オープンには新しい失敗ストリークが必要です。
func (cb *CircuitBreaker) RecordFailure(key, errorText string, policy Policy) {
	state := cb.entry(key)
	state.FailCount++
	if state.FailCount >= policy.CircuitFailThreshold {
		state.OpenUntil = cb.now().Add(policy.CircuitCooldown).Unix()
		state.FailCount = 0
		slog.Warn("circuit opened", "key", key, "cooldown", policy.CircuitCooldown, "last_error", errorText)
	}
	state.LastError = errorText
	state.LastFailure = cb.now().Unix()
	if err := cb.kv.Set(key, state); err != nil {
		slog.Warn("circuit state write failed", "key", key, "error", err)
	}
}
