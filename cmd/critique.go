package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-tutor/internal/config"
	"github.com/shouni/go-comic-tutor/internal/pipeline"

	"github.com/spf13/cobra"
)

// critiqueCmd は、レンダリングを行わず批評ループだけを実行するのだ。
// 既存 run の絵コンテ（--run-id）か、新規ファイル（--storyboard）の
// どちらかを対象にできるのだ。
var critiqueCmd = &cobra.Command{
	Use:   "critique",
	Short: "絵コンテへレビュワー編成の批評だけを適用するのだ。",
	Long: `5人のレビュワーペルソナで絵コンテを評価し、重大度付きイシューと
書き換え提案を evaluation/ 配下にレポートとして残すのだ。
画像生成は行わないので、台本の推敲を安く回したいときに便利なのだ。`,
	RunE: critiqueCommand,
}

func critiqueCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.RunID == "" && opts.StoryboardFile == "" {
		return fmt.Errorf("対象（--run-id または --storyboard）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("批評モードを起動するのだ！",
		"run_id", opts.RunID,
		"storyboard", opts.StoryboardFile,
		"stage", opts.Stage)

	return pipeline.ExecuteCritique(ctx, cfg)
}

func init() {
	critiqueCmd.Flags().StringVar(&opts.Stage, "stage", pipeline.DefaultStage, "批評レポートのステージ名なのだ。")
}
