package reliability

import (
	"context"
	"log/slog"
	"time"
)

type attemptResult[T any] struct {
	value T
	err   error
}

// Run は operation をポリシーに従って最大 MaxRetries+1 回実行します。
//
// サーキットが開いている場合は operation を一度も呼ばずに
// CircuitOpenError で即座に失敗します。各試行は独立したゴルーチンで
// 実行し、デッドラインと競走させます。デッドラインを過ぎた試行は
// タイムアウト失敗として扱い、ワーカーの結果は破棄します
// （プロバイダ側に強制キャンセルの手段はないため、ワーカーは
// 合流させずに放置します）。
func Run[T any](ctx context.Context, key string, policy Policy, breaker *CircuitBreaker, operation func(context.Context) (T, error)) (T, error) {
	var zero T

	if !breaker.CanAttempt(key) {
		return zero, &CircuitOpenError{Key: key, OpenUntil: breaker.OpenUntil(key)}
	}

	var lastErr error
	totalAttempts := policy.MaxRetries + 1

	for attempt := 0; attempt < totalAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, err := runOnce(ctx, key, policy, operation)
		if err == nil {
			breaker.RecordSuccess(key)
			return value, nil
		}

		lastErr = err
		breaker.RecordFailure(key, err.Error(), policy)
		slog.Warn("provider attempt failed", "key", key, "attempt", attempt+1, "max_attempts", totalAttempts, "error", err)

		if attempt < totalAttempts-1 {
			// 指数バックオフ: backoff * 2^attempt
			delay := policy.Backoff * (1 << attempt)
			if !sleepContext(ctx, delay) {
				return zero, ctx.Err()
			}
		}
	}

	return zero, &ProviderCallError{Key: key, Attempts: totalAttempts, LastErr: lastErr}
}

// runOnce は1回の試行をワーカーで実行し、デッドラインと競走させます。
func runOnce[T any](ctx context.Context, key string, policy Policy, operation func(context.Context) (T, error)) (T, error) {
	var zero T

	attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		value, err := operation(attemptCtx)
		done <- attemptResult[T]{value: value, err: err}
	}()

	select {
	case result := <-done:
		return result.value, result.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			// 呼び出し元のキャンセルはタイムアウトとは区別して伝える
			return zero, ctx.Err()
		}
		return zero, &TimeoutError{Key: key, Timeout: policy.Timeout}
	}
}

// sleepContext は delay だけ待機します。ctx が先に終わった場合は false です。
func sleepContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
