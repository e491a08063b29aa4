package cmd

import (
	"fmt"

	"github.com/shouni/go-comic-tutor/pkg/presets"

	"github.com/spf13/cobra"
)

// presetsCmd は、利用可能な実行プリセットの一覧を表示するのだ。
// --preset-file を渡すと上書き後の内容で表示するのだ。
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "利用可能な実行プリセットの一覧を表示するのだ。",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := presets.NewRegistry()
		if opts.PresetFile != "" {
			if err := registry.LoadOverrides(opts.PresetFile); err != nil {
				return fmt.Errorf("プリセット上書きの読み込みに失敗したのだ: %w", err)
			}
		}
		for _, preset := range registry.List() {
			fmt.Printf("%-22s panels=%-2d mode=%-8s critique=%-6s iterations=%d text=%s\n",
				preset.PresetID, preset.PanelCount, preset.Mode,
				preset.CritiqueMode, preset.CritiqueMaxIterations, preset.ImageTextMode)
			fmt.Printf("    %s\n", preset.Description)
		}
		return nil
	},
}
