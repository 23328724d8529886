package utils

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints defines the constraints for image processing.
type ImageConstraints struct {
	MaxWidth  int
	MaxHeight int
}

// DefaultImageConstraints returns the default constraints for boundary detection.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxWidth:  1024,
		MaxHeight: 1024,
	}
}

// ScaleDown resizes an image to fit within the constraints while preserving
// aspect ratio. Images already within bounds are returned unchanged; the
// function never upscales. Uses Lanczos resampling for high quality.
func ScaleDown(img image.Image, constraints ImageConstraints) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid image dimensions %dx%d", width, height),
		}
	}

	scaleX := float64(constraints.MaxWidth) / float64(width)
	scaleY := float64(constraints.MaxHeight) / float64(height)
	scale := math.Min(scaleX, scaleY)
	if scale >= 1.0 {
		return img, nil
	}

	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), nil
}

// Grayscale converts an image to an 8-bit grayscale raster.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma weights
			lum := (299*uint32(r>>8) + 587*uint32(g>>8) + 114*uint32(bl>>8)) / 1000
			out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = uint8(lum)
		}
	}
	return out
}
