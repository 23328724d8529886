// Package ocr recognizes text in voucher regions and merges the per-region
// results into a single deduplicated line sequence.
package ocr

import (
	"context"
	"image"
)

// Line is one unit of recognized text for one region.
type Line struct {
	Region     string          // originating region name, set by the aggregator
	Text       string          // raw recognized text
	Confidence float64         // recognition confidence in [0,1], 0 when unknown
	Box        image.Rectangle // bounding box in region coordinates, zero when unknown
}

// Engine recognizes text lines in a single image. Implementations must be
// safe for sequential reuse across images; concurrent use is not required.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) ([]Line, error)
	Close() error
}
