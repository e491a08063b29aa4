// Package reliability は、不安定で高コストな外部プロバイダ呼び出しを
// タイムアウト・リトライ・サーキットブレーカーで保護します。
package reliability

import "time"

// Policy はプロバイダ呼び出し1回分の回復ポリシーです。
// 呼び出しごとに値渡しされ、変更されることはありません。
type Policy struct {
	Timeout              time.Duration
	MaxRetries           int
	Backoff              time.Duration
	CircuitFailThreshold int
	CircuitCooldown      time.Duration
}

// DefaultPolicy は運用実績のある保守的な既定値を返します。
func DefaultPolicy() Policy {
	return Policy{
		Timeout:              120 * time.Second,
		MaxRetries:           2,
		Backoff:              2 * time.Second,
		CircuitFailThreshold: 4,
		CircuitCooldown:      10 * time.Minute,
	}
}
