// Package rectify detects the dominant quadrilateral boundary of a
// photographed document and warps it into an axis-aligned rectangle.
package rectify

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
	"github.com/anthonynsimon/bild/blur"
)

// ErrNoBoundary signals that no reliable document quadrilateral was found.
// Callers should fall back to the unrectified image.
var ErrNoBoundary = errors.New("rectify: no document boundary found")

// Config holds configuration for boundary detection and warping.
type Config struct {
	Enabled         bool    // whether rectification is enabled
	MaxDetectSize   int     // detection runs on a copy scaled to fit this square
	BlurSigma       float64 // Gaussian blur sigma applied before thresholding (0 disables)
	ThresholdWindow int     // adaptive threshold neighborhood size (odd, pixels)
	ThresholdC      float64 // constant subtracted from the local mean
	ApproxTolerance float64 // polygon approximation tolerance as fraction of perimeter
	MinAreaRatio    float64 // minimum quad area relative to the image
	MaxAreaRatio    float64 // maximum quad area relative to the image
	MinMaskCoverage float64 // minimum foreground coverage for a usable mask
	MaxMaskCoverage float64 // maximum foreground coverage for a usable mask
	DebugDir        string  // if non-empty, writes mask and overlay PNGs here
}

// DefaultConfig returns sensible defaults for boundary detection.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MaxDetectSize:   1024,
		BlurSigma:       1.0,
		ThresholdWindow: 31,
		ThresholdC:      10,
		ApproxTolerance: 0.02,
		MinAreaRatio:    0.20,
		MaxAreaRatio:    0.98,
		MinMaskCoverage: 0.01,
		MaxMaskCoverage: 0.99,
		DebugDir:        "",
	}
}

// Quad holds the four detected corners ordered top-left, top-right,
// bottom-right, bottom-left in source image coordinates.
type Quad [4]utils.Point

// Rectifier finds a document boundary and applies perspective correction.
type Rectifier struct {
	cfg Config
}

// New creates a rectifier with the given configuration.
func New(cfg Config) *Rectifier {
	return &Rectifier{cfg: cfg}
}

// Config returns the rectifier configuration.
func (r *Rectifier) Config() Config { return r.cfg }

// Apply detects the dominant document quadrilateral and returns the
// perspective-corrected image together with the detected corners.
// When no reliable boundary exists it returns ErrNoBoundary; the caller
// keeps the original image in that case.
func (r *Rectifier) Apply(img image.Image) (image.Image, Quad, error) {
	if img == nil {
		return nil, Quad{}, errors.New("rectify: nil image")
	}
	if !r.cfg.Enabled {
		return img, Quad{}, ErrNoBoundary
	}

	b := img.Bounds()
	if b.Dx() < 2 || b.Dy() < 2 {
		return img, Quad{}, ErrNoBoundary
	}

	// Detect on a size-capped copy, then scale the quad back to the
	// original coordinates before warping at full resolution.
	detect, err := utils.ScaleDown(img, utils.ImageConstraints{
		MaxWidth:  r.cfg.MaxDetectSize,
		MaxHeight: r.cfg.MaxDetectSize,
	})
	if err != nil {
		return img, Quad{}, err
	}
	if r.cfg.BlurSigma > 0 {
		detect = blur.Gaussian(detect, r.cfg.BlurSigma)
	}

	quad, err := r.detectQuad(detect)
	if err != nil {
		return img, Quad{}, err
	}

	db := detect.Bounds()
	sx := float64(b.Dx()) / float64(db.Dx())
	sy := float64(b.Dy()) / float64(db.Dy())
	var src Quad
	copy(src[:], utils.ScalePoints(quad[:], sx, sy))

	if r.cfg.DebugDir != "" {
		_ = dumpOverlayPNG(r.cfg.DebugDir, img, src[:])
	}

	out := warpQuad(img, src)
	if out == nil {
		out = cropBoundary(img, src)
	}
	if out == nil {
		return img, Quad{}, ErrNoBoundary
	}
	return out, src, nil
}

// cropBoundary is the fallback when perspective warping is impossible, for
// example when near-collinear corners make the homography singular. The
// axis-aligned crop of the boundary still trims background the OCR engine
// would otherwise chew on. Returns nil for degenerate boundaries.
func cropBoundary(img image.Image, quad Quad) image.Image {
	box := utils.BoundingBox(quad[:])
	if box.Width() < 2 || box.Height() < 2 {
		return nil
	}
	return utils.CropImageBox(img, box)
}

// detectQuad runs grayscale conversion, adaptive thresholding, contour
// extraction and polygon approximation on the detection-sized image.
func (r *Rectifier) detectQuad(img image.Image) (Quad, error) {
	gray := utils.Grayscale(img)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()

	mask, coverage := adaptiveThreshold(gray, r.cfg.ThresholdWindow, r.cfg.ThresholdC)
	defer releaseMask(mask)

	if coverage < r.cfg.MinMaskCoverage || coverage > r.cfg.MaxMaskCoverage {
		return Quad{}, ErrNoBoundary
	}

	if r.cfg.DebugDir != "" {
		_ = dumpMaskPNG(r.cfg.DebugDir, mask, w, h)
	}

	contour := largestContour(mask, w, h)
	if len(contour) < 4 {
		return Quad{}, ErrNoBoundary
	}

	perimeter := utils.PolygonPerimeter(contour)
	eps := r.cfg.ApproxTolerance * perimeter
	approx := compactClosed(utils.SimplifyPolygon(contour, eps), eps)
	if len(approx) != 4 {
		return Quad{}, ErrNoBoundary
	}

	area := utils.PolygonArea(approx)
	total := float64(w * h)
	if area < r.cfg.MinAreaRatio*total || area > r.cfg.MaxAreaRatio*total {
		return Quad{}, ErrNoBoundary
	}

	return orderQuad(approx), nil
}
