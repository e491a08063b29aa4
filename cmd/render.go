package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-tutor/internal/config"
	"github.com/shouni/go-comic-tutor/internal/pipeline"

	"github.com/spf13/cobra"
)

// renderCmd は、絵コンテJSONから批評ゲートを通してコマ画像一式を
// 生成するメインのサブコマンドなのだ。
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "絵コンテから批評ゲート付きでコマ画像を生成するのだ。",
	Long: `絵コンテJSONを読み込み、レビュワー編成による批評と決定的書き換えを通したあと、
指定モデルでコマ画像とストリップを生成するのだ。結果は run ディレクトリに
マニフェストとして必ず永続化されるのだよ。`,
	RunE: renderCommand,
}

func renderCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.StoryboardFile == "" {
		return fmt.Errorf("絵コンテ（--storyboard）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("レンダリングパイプラインを起動するのだ！",
		"storyboard", opts.StoryboardFile,
		"preset", opts.PresetID,
		"model", opts.ModelKey,
		"dry_run", opts.DryRun)

	err := pipeline.ExecuteRender(ctx, cfg)
	var gateErr *pipeline.GateBlockedError
	if errors.As(err, &gateErr) {
		// ゲート拒否は障害ではなく意図された停止なので、レポートの
		// 場所を案内して終了コードだけ非ゼロにするのだ。
		return fmt.Errorf("批評ゲートで停止したのだ（critical=%d, major=%d）。evaluation/ のレポートを確認してほしいのだ: %w",
			gateErr.CriticalCount, gateErr.MajorCount, err)
	}
	if err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！")
	return nil
}
