// Package store は、サーキットブレーカーとパネルキャッシュが共有する
// 永続キーバリューストアの抽象を提供します。実装はキー単位の
// read-modify-write がアトミックであることを保証します。
package store

// KeyValueStore は JSON ドキュメント単位の get/set 契約です。
type KeyValueStore interface {
	// Get はキーに対応する値を out へデコードします。
	// キーが存在しない場合は (false, nil) を返します。
	Get(key string, out any) (bool, error)
	// Set はキーの値を無条件に上書きし、永続化します。
	Set(key string, value any) error
}
