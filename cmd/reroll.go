package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-tutor/internal/config"
	"github.com/shouni/go-comic-tutor/internal/pipeline"

	"github.com/spf13/cobra"
)

// rerollCmd は、既存 run の1コマだけをキャッシュを迂回して振り直すのだ。
// 気に入らないコマが1枚あるときに、全コマを再生成せずに済むのだ。
var rerollCmd = &cobra.Command{
	Use:   "reroll",
	Short: "既存 run のコマを1枚だけ振り直すのだ。",
	Long: `--run-id と --panel で指定したコマをキャッシュを素通りして再生成し、
マニフェストとストリップを新しい画像で更新するのだ。
シードをずらすので、同じプロンプトでも別の絵が出るのだよ。`,
	RunE: rerollCommand,
}

func rerollCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if opts.RunID == "" {
		return fmt.Errorf("対象の run（--run-id）を指定してほしいのだ")
	}
	if opts.PanelNumber <= 0 {
		return fmt.Errorf("振り直すコマ番号（--panel）を指定してほしいのだ")
	}

	cfg := config.LoadConfig()
	cfg.Options = opts

	slog.Info("リロールモードを起動するのだ！",
		"run_id", opts.RunID,
		"panel", opts.PanelNumber,
		"model", opts.ModelKey)

	return pipeline.ExecuteReroll(ctx, cfg)
}

func init() {
	rerollCmd.Flags().IntVar(&opts.PanelNumber, "panel", 0, "振り直すコマ番号なのだ。")
}
