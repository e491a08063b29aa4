package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-comic-tutor/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は全サブコマンドで共有する実行時パラメータなのだ。
var opts config.RunOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- ソース入力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.StoryboardFile, "storyboard", "s", "", "絵コンテJSONのパス（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ContextFile, "context", "", "期待キーポイントと誤解リストを持つ学習コンテキストJSONなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.PresetID, "preset", "p", config.DefaultPreset, "実行プリセットIDなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.PresetFile, "preset-file", "", "組み込みプリセットを上書きするYAMLのパスなのだ。")

	// --- 実行対象 ---
	rootCmd.PersistentFlags().StringVar(&opts.RunID, "run-id", "", "既存 run のID（再評価・リロールで使うのだ）。")
	rootCmd.PersistentFlags().StringVarP(&opts.ModelKey, "model", "m", "", "使用する画像モデルキーなのだ。未指定ならデフォルトモデルなのだ。")

	// --- 挙動制御 ---
	rootCmd.PersistentFlags().StringVar(&opts.Mode, "mode", "", "品質モード（draft / publish）。未指定ならプリセット値なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.CritiqueMode, "critique", "", "批評ゲートのモード（off / warn / strict）。未指定ならプリセット値なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageTextMode, "image-text", "", "画像内テキストポリシー（none / minimal / full）なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.MaxIterations, "max-iterations", -1, "批評→書き換えループの反復上限なのだ。-1 でプリセット値なのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.NoAutoRewrite, "no-auto-rewrite", false, "決定的書き換えを無効化して批評だけを記録するのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.NoFallback, "no-fallback", false, "プロバイダ障害時のフォールバックモデルを無効化するのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "プロバイダを呼ばずプレースホルダー画像で通すのだ。")

	// --- 公開設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.PublishTo, "publish-to", "o", "", "完成ストリップの公開先（ローカル or gs://...）なのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
// 批評やプリセット一覧はプロバイダを呼ばないし、--dry-run も同様なので、
// キーの存在チェックは実際に画像生成へ進むコマンドだけに掛けるのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	if cmd.Name() != "render" && cmd.Name() != "reroll" {
		return nil
	}
	if opts.DryRun {
		return nil
	}
	if os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: OPENAI_API_KEY か GEMINI_API_KEY のどちらかを設定してほしいのだ（--dry-run なら不要なのだ）")
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"go-comic-tutor",
		addAppFlags,
		preRunAppE,
		renderCmd,
		critiqueCmd,
		rerollCmd,
		modelsCmd,
		presetsCmd,
	)
}
