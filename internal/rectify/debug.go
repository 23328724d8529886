package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// dumpMaskPNG writes the binary threshold mask as a PNG for inspection.
func dumpMaskPNG(dir string, mask []bool, w, h int) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, set := range mask {
		if set {
			img.Pix[i] = 255
		}
	}
	name := fmt.Sprintf("mask_%d.png", time.Now().UnixNano())
	return writePNG(filepath.Join(dir, name), img)
}

// dumpOverlayPNG writes the source image with the detected boundary drawn
// on top.
func dumpOverlayPNG(dir string, img image.Image, quad []utils.Point) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	b := img.Bounds()
	overlay := image.NewRGBA(b)
	draw.Draw(overlay, b, img, b.Min, draw.Src)
	utils.DrawPolygon(overlay, quad, color.RGBA{R: 255, A: 255}, 2)
	name := fmt.Sprintf("overlay_%d.png", time.Now().UnixNano())
	return writePNG(filepath.Join(dir, name), overlay)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // debug artifact path from config
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
