// Package artifact は実行ディレクトリの配置と実験レジストリを管理します。
// 1回の実行は run ディレクトリに閉じ、下位のサブディレクトリへ
// 企画・プロンプト・画像・評価・レポートを分けて保存します。
package artifact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

const registryFileName = "experiment_registry.jsonl"

// RunPaths は1回の実行に属する各ディレクトリの解決済みパスです。
type RunPaths struct {
	RunID          string
	Root           string
	PlanningDir    string
	PromptsDir     string
	ImagesDir      string
	CompositeDir   string
	EvaluationsDir string
	ReportsDir     string
}

// Store は実行ディレクトリの作成とメタデータ書き込みを担います。
type Store struct {
	outputRoot   string
	registryPath string
}

// NewStore は出力ルートを用意して Store を返します。実験レジストリは
// 出力ルートの親に置き、複数の出力ルートを横断して追記されます。
func NewStore(outputRoot string) (*Store, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}
	return &Store{
		outputRoot:   outputRoot,
		registryPath: filepath.Join(filepath.Dir(outputRoot), registryFileName),
	}, nil
}

// NewRunID は時刻とランダム成分から衝突しない実行IDを生成します。
func NewRunID() string {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("run-%s-%s", stamp, suffix)
}

// CreateRun は実行ディレクトリ一式を作成し、再現用に実行設定を
// run_config.json として保存します。
func (s *Store) CreateRun(config domain.RunConfig) (RunPaths, error) {
	if config.RunID == "" {
		config.RunID = NewRunID()
	}
	if config.CreatedAt == "" {
		config.CreatedAt = domain.UTCTimestamp()
	}

	paths := s.resolvePaths(config.RunID)
	for _, dir := range []string{
		paths.Root, paths.PlanningDir, paths.PromptsDir, paths.ImagesDir,
		paths.CompositeDir, paths.EvaluationsDir, paths.ReportsDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return RunPaths{}, fmt.Errorf("failed to create run dir %s: %w", dir, err)
		}
	}
	if err := WriteJSON(filepath.Join(paths.Root, "run_config.json"), config); err != nil {
		return RunPaths{}, err
	}
	slog.Info("実行ディレクトリを作成したのだ", "run_id", config.RunID, "root", paths.Root)
	return paths, nil
}

// OpenRun は既存の実行ディレクトリを解決します。存在しない場合は
// fs.ErrNotExist を包んだエラーを返し、分類側で artifact_not_found に
// 落ちます。
func (s *Store) OpenRun(runID string) (RunPaths, error) {
	paths := s.resolvePaths(runID)
	if _, err := os.Stat(paths.Root); err != nil {
		return RunPaths{}, fmt.Errorf("run not found: %s: %w", runID, err)
	}
	return paths, nil
}

func (s *Store) resolvePaths(runID string) RunPaths {
	root := filepath.Join(s.outputRoot, runID)
	return RunPaths{
		RunID:          runID,
		Root:           root,
		PlanningDir:    filepath.Join(root, "planning"),
		PromptsDir:     filepath.Join(root, "panel_prompts"),
		ImagesDir:      filepath.Join(root, "images"),
		CompositeDir:   filepath.Join(root, "composite"),
		EvaluationsDir: filepath.Join(root, "evaluation"),
		ReportsDir:     filepath.Join(root, "reports"),
	}
}

// AppendRegistry は実験レジストリへ1行のJSONを追記します。行には
// 常に追記時刻が付与されます。
func (s *Store) AppendRegistry(entry map[string]any) error {
	payload := map[string]any{"timestamp": domain.UTCTimestamp()}
	for key, value := range entry {
		payload[key] = value
	}
	line, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode registry entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.registryPath), 0o755); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}
	file, err := os.OpenFile(s.registryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open experiment registry: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append experiment registry: %w", err)
	}
	return nil
}

// RegistryPath は実験レジストリの場所を返します。
func (s *Store) RegistryPath() string { return s.registryPath }

// WriteJSON は整形済みJSONを親ディレクトリごと書き出します。
func WriteJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json for %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create parent dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadJSON はJSONファイルを out へ読み込みます。
func ReadJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
