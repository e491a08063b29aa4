package cmd

import (
	"fmt"

	"github.com/shouni/go-comic-tutor/pkg/models"

	"github.com/spf13/cobra"
)

// modelsCmd は、サポートしている画像モデルの一覧を表示するのだ。
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "利用可能な画像モデルの一覧を表示するのだ。",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, descriptor := range models.ListModelDescriptors() {
			flags := ""
			if descriptor.Experimental {
				flags = " [experimental]"
			}
			fallback := "-"
			if descriptor.FallbackModel != "" {
				fallback = descriptor.FallbackModel
			}
			fmt.Printf("%-32s provider=%-8s tier=%-8s cost_per_panel=$%.4f fallback=%s%s\n",
				descriptor.Key, descriptor.Provider, descriptor.Tier,
				models.EstimateCost(descriptor.Key, 1), fallback, flags)
		}
		return nil
	},
}
