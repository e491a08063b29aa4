package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore は単一の JSON ドキュメントをストア全体として扱う実装です。
// プロセス内の read-modify-write はミューテックスで直列化します。
// 複数プロセスでの共有はシングルライター運用が前提です。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore は path を作成（親ディレクトリ込み）して FileStore を返します。
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	fs := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := fs.writeDocument(map[string]json.RawMessage{}); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// Get は KeyValueStore 実装です。
func (f *FileStore) Get(key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDocument()
	if err != nil {
		return false, err
	}
	raw, ok := doc[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode value for key %q: %w", key, err)
	}
	return true, nil
}

// Set は KeyValueStore 実装です。ドキュメント全体を読み直してから
// 1キーを差し替えて書き戻すため、プロセス内での更新は失われません。
func (f *FileStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readDocument()
	if err != nil {
		return err
	}
	doc[key] = raw
	return f.writeDocument(doc)
}

func (f *FileStore) readDocument() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read store %s: %w", f.path, err)
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store %s is corrupted: %w", f.path, err)
	}
	return doc, nil
}

func (f *FileStore) writeDocument(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	// 部分書き込みでドキュメントを壊さないよう一時ファイル経由で置き換える
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store %s: %w", f.path, err)
	}
	return os.Rename(tmp, f.path)
}
