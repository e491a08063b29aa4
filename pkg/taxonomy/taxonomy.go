// Package taxonomy は、レンダリング実行で発生する失敗を安定した
// エラー種別キーへ分類します。運用側はフリーテキストを解析せずに
// 「インフラ異常」「品質ゲート」「入力不正」を区別できます。
package taxonomy

import (
	"context"
	"errors"
	"io/fs"

	"github.com/shouni/go-comic-tutor/pkg/reliability"
)

// Kind は閉じたエラー種別キーです。
type Kind string

const (
	KindCircuitOpen       Kind = "provider_circuit_open"
	KindProviderTimeout   Kind = "provider_timeout"
	KindProviderCall      Kind = "provider_call_failed"
	KindSchemaValidation  Kind = "schema_validation_failure"
	KindArtifactNotFound  Kind = "artifact_not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindExperimentalModel Kind = "experimental_model_disabled"
	KindUnknown           Kind = "unknown_failure"
)

// SchemaError は絵コンテや設定の構造検証の失敗です。
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string { return "schema validation failed: " + e.Err.Error() }
func (e *SchemaError) Unwrap() error { return e.Err }

// InvalidInputError はサポート外モデル指定などの呼び出し側の入力不正です。
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

// ExperimentalModelError は、実験的モデルが設定で無効のまま
// 指定されたことを表します。
type ExperimentalModelError struct {
	ModelKey string
}

func (e *ExperimentalModelError) Error() string {
	return "model '" + e.ModelKey + "' is experimental and disabled; set COMIC_TUTOR_ENABLE_EXPERIMENTAL_MODELS=true to use it"
}

// Classify はエラーを種別キーとメッセージへ分類します。
// タイムアウトで使い切った ProviderCallError は provider_timeout へ
// 倒し、運用上の区別を保ちます。
func Classify(err error) (Kind, string) {
	if err == nil {
		return KindUnknown, ""
	}

	var circuitErr *reliability.CircuitOpenError
	if errors.As(err, &circuitErr) {
		return KindCircuitOpen, circuitErr.Error()
	}
	var timeoutErr *reliability.TimeoutError
	if errors.As(err, &timeoutErr) {
		return KindProviderTimeout, timeoutErr.Error()
	}
	var callErr *reliability.ProviderCallError
	if errors.As(err, &callErr) {
		var lastTimeout *reliability.TimeoutError
		if errors.As(callErr.LastErr, &lastTimeout) || errors.Is(callErr.LastErr, context.DeadlineExceeded) {
			return KindProviderTimeout, callErr.Error()
		}
		return KindProviderCall, callErr.Error()
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return KindSchemaValidation, schemaErr.Error()
	}
	var experimentalErr *ExperimentalModelError
	if errors.As(err, &experimentalErr) {
		return KindExperimentalModel, experimentalErr.Error()
	}
	if errors.Is(err, fs.ErrNotExist) {
		return KindArtifactNotFound, err.Error()
	}
	var inputErr *InvalidInputError
	if errors.As(err, &inputErr) {
		return KindInvalidInput, inputErr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProviderTimeout, err.Error()
	}
	return KindUnknown, err.Error()
}
