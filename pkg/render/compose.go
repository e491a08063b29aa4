package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
)

const stripGutter = 16

// ComposeStrip はコマ画像を縦一列に連結した strip.png を書き出します。
// コマ幅が揃っていない場合は最大幅に合わせて左寄せします。
func ComposeStrip(panelImagePaths []string, outputPath string) error {
	if len(panelImagePaths) == 0 {
		return fmt.Errorf("no panel images to compose")
	}

	panels := make([]image.Image, 0, len(panelImagePaths))
	maxWidth := 0
	totalHeight := stripGutter
	for _, path := range panelImagePaths {
		img, err := readPNG(path)
		if err != nil {
			return err
		}
		bounds := img.Bounds()
		if bounds.Dx() > maxWidth {
			maxWidth = bounds.Dx()
		}
		totalHeight += bounds.Dy() + stripGutter
		panels = append(panels, img)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, maxWidth+2*stripGutter, totalHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	y := stripGutter
	for _, panel := range panels {
		bounds := panel.Bounds()
		target := image.Rect(stripGutter, y, stripGutter+bounds.Dx(), y+bounds.Dy())
		draw.Draw(canvas, target, panel, bounds.Min, draw.Src)
		y += bounds.Dy() + stripGutter
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create composite dir: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create strip image: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, canvas); err != nil {
		return fmt.Errorf("failed to encode strip image: %w", err)
	}
	return nil
}

func readPNG(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open panel image: %w", err)
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode panel image %s: %w", path, err)
	}
	return img, nil
}
