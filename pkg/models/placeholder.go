package models

import (
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// writePlaceholderImage はドライラン・テスト用の合成画像を書き出します。
// プロンプトのハッシュから帯色を導くため、異なるプロンプトは目視でも
// 区別できる画像になります。
func writePlaceholderImage(outputPath, title, prompt string, width, height int) error {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	background := color.RGBA{R: 246, G: 247, B: 252, A: 255}
	border := color.RGBA{R: 50, G: 50, B: 50, A: 255}

	digest := sha256.Sum256([]byte(title + "\n" + prompt))
	accent := color.RGBA{R: digest[0], G: digest[1], B: digest[2], A: 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case x < 10 || y < 10 || x >= width-10 || y >= height-10:
				canvas.SetRGBA(x, y, border)
			case y >= 24 && y < 56 && x >= 24 && x < width-24:
				canvas.SetRGBA(x, y, accent)
			default:
				canvas.SetRGBA(x, y, background)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create placeholder output dir: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create placeholder image: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, canvas); err != nil {
		return fmt.Errorf("failed to encode placeholder image: %w", err)
	}
	return nil
}
