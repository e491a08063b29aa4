package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
`

// SQLiteStore は modernc.org/sqlite を使った本番向け実装です。
// UPSERT によりキー単位の書き込みがアトミックになるため、
// 複数プロセスでストアを共有しても更新は失われません。
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore はデータベースを開き、スキーマを初期化して返します。
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize kv schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close は基盤のデータベース接続を閉じます。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get は KeyValueStore 実装です。
func (s *SQLiteStore) Get(key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("failed to decode value for key %q: %w", key, err)
	}
	return true, nil
}

// Set は KeyValueStore 実装です。
func (s *SQLiteStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO kv_entries (key, value) VALUES (?, ?)`,
		key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}
