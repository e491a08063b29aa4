package artifact

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

func TestStore_CreateRunLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	store, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := store.CreateRun(domain.RunConfig{
		Topic:         "caching",
		AudienceLevel: "beginner",
		PanelCount:    4,
		Mode:          domain.RunModeDraft,
		ImageTextMode: domain.ImageTextNone,
	})
	if err != nil {
		t.Fatal(err)
	}

	if paths.RunID == "" || !strings.HasPrefix(paths.RunID, "run-") {
		t.Errorf("実行IDが採番されるべきなのだ: %q", paths.RunID)
	}
	for _, dir := range []string{
		paths.PlanningDir, paths.PromptsDir, paths.ImagesDir,
		paths.CompositeDir, paths.EvaluationsDir, paths.ReportsDir,
	} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("ディレクトリが作られていないのだ: %s", dir)
		}
	}

	var saved domain.RunConfig
	if err := ReadJSON(filepath.Join(paths.Root, "run_config.json"), &saved); err != nil {
		t.Fatal(err)
	}
	if saved.RunID != paths.RunID || saved.Topic != "caching" || saved.CreatedAt == "" {
		t.Errorf("run_config.json の内容が欠けているのだ: %+v", saved)
	}
}

func TestStore_OpenRun(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	store, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	created, err := store.CreateRun(domain.RunConfig{RunID: "run-known", AudienceLevel: "beginner"})
	if err != nil {
		t.Fatal(err)
	}

	opened, err := store.OpenRun("run-known")
	if err != nil {
		t.Fatal(err)
	}
	if opened.Root != created.Root || opened.EvaluationsDir != created.EvaluationsDir {
		t.Error("再解決したパスが一致しないのだ")
	}

	t.Run("存在しない実行は fs.ErrNotExist を包むのだ", func(t *testing.T) {
		_, err := store.OpenRun("run-missing")
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("fs.ErrNotExist を期待したのだ: %v", err)
		}
	})
}

func TestStore_AppendRegistry(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outputs")
	store, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}

	for _, model := range []string{"gpt-image-1", "gemini-2.5-flash-image"} {
		if err := store.AppendRegistry(map[string]any{"run_id": "run-x", "model_key": model}); err != nil {
			t.Fatal(err)
		}
	}

	file, err := os.Open(store.RegistryPath())
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("JSONL の行が壊れているのだ: %v", err)
		}
		lines = append(lines, entry)
	}
	if len(lines) != 2 {
		t.Fatalf("2行の追記を期待したのだ: %d", len(lines))
	}
	if lines[0]["timestamp"] == "" || lines[1]["model_key"] != "gemini-2.5-flash-image" {
		t.Errorf("レジストリ行の内容が欠けているのだ: %+v", lines)
	}
}

func TestNewRunID_Unique(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Error("実行IDは毎回異なるはずなのだ")
	}
}

func TestCritiqueSink_FileNaming(t *testing.T) {
	dir := t.TempDir()
	sink := NewCritiqueSink(dir)
	report := domain.CritiqueReport{RunID: "run-x", Stage: "plan", OverallVerdict: domain.VerdictPass, OverallScore: 0.91}

	if err := sink.SaveIteration("plan", 0, report, true); err != nil {
		t.Fatal(err)
	}
	if err := sink.SaveRewriteNotes("plan", 0, []string{"Moved recap panel to final position."}); err != nil {
		t.Fatal(err)
	}
	if err := sink.SaveFinal("plan", report, 1); err != nil {
		t.Fatal(err)
	}

	t.Run("反復レポートは連番付きで保存されるのだ", func(t *testing.T) {
		var payload map[string]any
		if err := ReadJSON(filepath.Join(dir, "plan_iter_00.json"), &payload); err != nil {
			t.Fatal(err)
		}
		if payload["iteration"] != float64(0) || payload["auto_rewrite_enabled"] != true {
			t.Errorf("反復メタデータが欠けているのだ: %+v", payload)
		}
		if payload["overall_verdict"] != "pass" {
			t.Errorf("レポート本体が埋め込まれるべきなのだ: %+v", payload)
		}
	})

	t.Run("書き換えノートが残るのだ", func(t *testing.T) {
		var payload rewriteNotesRecord
		if err := ReadJSON(filepath.Join(dir, "plan_rewrite_00.json"), &payload); err != nil {
			t.Fatal(err)
		}
		if len(payload.RewriteNotes) != 1 {
			t.Errorf("ノートが保存されていないのだ: %+v", payload)
		}
	})

	t.Run("最終レポートは rewrite_count を運ぶのだ", func(t *testing.T) {
		var payload map[string]any
		if err := ReadJSON(filepath.Join(dir, "plan.json"), &payload); err != nil {
			t.Fatal(err)
		}
		if payload["rewrite_count"] != float64(1) {
			t.Errorf("rewrite_count が無いのだ: %+v", payload)
		}
	})
}
