package taxonomy

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/shouni/go-comic-tutor/pkg/reliability"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "サーキットオープン",
			err:  &reliability.CircuitOpenError{Key: "p:m", OpenUntil: time.Unix(0, 0)},
			want: KindCircuitOpen,
		},
		{
			name: "単発タイムアウト",
			err:  &reliability.TimeoutError{Key: "p:m", Timeout: time.Second},
			want: KindProviderTimeout,
		},
		{
			name: "タイムアウトでリトライを使い切った場合も provider_timeout",
			err: &reliability.ProviderCallError{
				Key: "p:m", Attempts: 3,
				LastErr: &reliability.TimeoutError{Key: "p:m", Timeout: time.Second},
			},
			want: KindProviderTimeout,
		},
		{
			name: "通常の呼び出し失敗",
			err:  &reliability.ProviderCallError{Key: "p:m", Attempts: 3, LastErr: errors.New("502")},
			want: KindProviderCall,
		},
		{
			name: "スキーマ検証失敗",
			err:  &SchemaError{Err: errors.New("recap_panel out of range")},
			want: KindSchemaValidation,
		},
		{
			name: "ラップされていても成果物欠落を拾えるのだ",
			err:  fmt.Errorf("reading storyboard: %w", fs.ErrNotExist),
			want: KindArtifactNotFound,
		},
		{
			name: "入力不正",
			err:  &InvalidInputError{Reason: "unsupported model 'dall-e-0'"},
			want: KindInvalidInput,
		},
		{
			name: "実験的モデル無効",
			err:  &ExperimentalModelError{ModelKey: "gemini-3.1-flash-image-preview"},
			want: KindExperimentalModel,
		},
		{
			name: "分類不能は unknown_failure",
			err:  errors.New("cosmic rays"),
			want: KindUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, message := Classify(tc.err)
			if kind != tc.want {
				t.Errorf("種別が違うのだ。期待: %s, 実際: %s", tc.want, kind)
			}
			if message == "" {
				t.Error("メッセージが空なのだ")
			}
		})
	}
}
