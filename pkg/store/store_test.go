package store

import (
	"path/filepath"
	"testing"
)

type circuitDoc struct {
	FailCount int    `json:"fail_count"`
	LastError string `json:"last_error"`
}

func runStoreContract(t *testing.T, kv KeyValueStore) {
	t.Helper()

	t.Run("存在しないキーは miss になるのだ", func(t *testing.T) {
		var doc circuitDoc
		found, err := kv.Get("missing", &doc)
		if err != nil {
			t.Fatalf("Get 失敗なのだ: %v", err)
		}
		if found {
			t.Error("存在しないキーが見つかってしまったのだ")
		}
	})

	t.Run("Set した値が往復できるのだ", func(t *testing.T) {
		want := circuitDoc{FailCount: 3, LastError: "boom"}
		if err := kv.Set("provider:model", want); err != nil {
			t.Fatalf("Set 失敗なのだ: %v", err)
		}
		var got circuitDoc
		found, err := kv.Get("provider:model", &got)
		if err != nil || !found {
			t.Fatalf("Get 失敗なのだ: found=%v err=%v", found, err)
		}
		if got != want {
			t.Errorf("往復で値が変わったのだ。期待: %+v, 実際: %+v", want, got)
		}
	})

	t.Run("Set は無条件で上書きするのだ", func(t *testing.T) {
		if err := kv.Set("provider:model", circuitDoc{FailCount: 0}); err != nil {
			t.Fatalf("Set 失敗なのだ: %v", err)
		}
		var got circuitDoc
		if _, err := kv.Get("provider:model", &got); err != nil {
			t.Fatalf("Get 失敗なのだ: %v", err)
		}
		if got.FailCount != 0 {
			t.Errorf("上書き後の値が古いのだ: %+v", got)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	kv, err := NewFileStore(filepath.Join(t.TempDir(), "state", "circuit.json"))
	if err != nil {
		t.Fatalf("FileStore の初期化に失敗したのだ: %v", err)
	}
	runStoreContract(t, kv)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "circuit.json")
	first, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Set("k", circuitDoc{FailCount: 7}); err != nil {
		t.Fatal(err)
	}

	// プロセス再起動を模して別インスタンスで開き直す
	second, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	var got circuitDoc
	found, err := second.Get("k", &got)
	if err != nil || !found {
		t.Fatalf("再オープン後に値が読めないのだ: found=%v err=%v", found, err)
	}
	if got.FailCount != 7 {
		t.Errorf("永続化された値が違うのだ: %+v", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	kv, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("SQLiteStore の初期化に失敗したのだ: %v", err)
	}
	defer kv.Close()
	runStoreContract(t, kv)
}
