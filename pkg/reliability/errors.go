package reliability

import (
	"fmt"
	"time"
)

// CircuitOpenError は、クールダウン中のキーに対する呼び出しを
// 即座に拒否したことを表します。リトライもバックオフも消費しません。
type CircuitOpenError struct {
	Key       string
	OpenUntil time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %q until %s, cooldown in effect", e.Key, e.OpenUntil.UTC().Format(time.RFC3339))
}

// TimeoutError は、1回の試行がデッドラインまでに完了しなかったことを表します。
// 裏で動き続けるワーカーの結果は破棄されます。
type TimeoutError struct {
	Key     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider call timed out after %s for %q", e.Timeout, e.Key)
}

// ProviderCallError は、全試行を使い切ってもプロバイダ呼び出しが
// 成功しなかったことを表します。Unwrap で最後のエラーを辿れます。
type ProviderCallError struct {
	Key      string
	Attempts int
	LastErr  error
}

func (e *ProviderCallError) Error() string {
	return fmt.Sprintf("provider call failed for %q after %d attempts: %v", e.Key, e.Attempts, e.LastErr)
}

func (e *ProviderCallError) Unwrap() error {
	return e.LastErr
}
