// Package segment splits a rectified voucher image into named overlapping
// regions that are recognized independently. Digits lost at full-page scale
// are often recoverable inside a cropped sub-region.
package segment

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// ErrDegenerateImage signals an image too small to segment.
var ErrDegenerateImage = errors.New("segment: image dimensions below 2x2")

// Mode selects the segmentation layout.
type Mode string

const (
	// ModeQuarters yields the full image plus four tiling quadrants.
	ModeQuarters Mode = "quarters"
	// ModeHalves yields the full image plus a left and right half.
	ModeHalves Mode = "halves"
)

// ParseMode validates a segmentation mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeQuarters, ModeHalves:
		return Mode(s), nil
	case "":
		return ModeQuarters, nil
	default:
		return "", fmt.Errorf("segment: unknown mode %q", s)
	}
}

// Region names in their fixed recognition order.
const (
	RegionFull        = "full"
	RegionTopLeft     = "top-left"
	RegionTopRight    = "top-right"
	RegionBottomLeft  = "bottom-left"
	RegionBottomRight = "bottom-right"
	RegionLeftHalf    = "left-half"
	RegionRightHalf   = "right-half"
)

// Region is a named sub-image with its pixel bounds in the source image.
type Region struct {
	Name   string
	Bounds image.Rectangle
	Image  image.Image
}

// Split returns the full image followed by its sub-regions for the given
// mode, in deterministic order. Width and height split at their integer
// midpoints with the remainder absorbed into the bottom/right regions.
func Split(img image.Image, mode Mode) ([]Region, error) {
	if img == nil {
		return nil, ErrDegenerateImage
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 2 || h < 2 {
		return nil, ErrDegenerateImage
	}

	mw, mh := w/2, h/2
	var cuts []Region
	switch mode {
	case ModeHalves:
		cuts = []Region{
			{Name: RegionLeftHalf, Bounds: image.Rect(0, 0, mw, h)},
			{Name: RegionRightHalf, Bounds: image.Rect(mw, 0, w, h)},
		}
	case ModeQuarters, "":
		cuts = []Region{
			{Name: RegionTopLeft, Bounds: image.Rect(0, 0, mw, mh)},
			{Name: RegionTopRight, Bounds: image.Rect(mw, 0, w, mh)},
			{Name: RegionBottomLeft, Bounds: image.Rect(0, mh, mw, h)},
			{Name: RegionBottomRight, Bounds: image.Rect(mw, mh, w, h)},
		}
	default:
		return nil, fmt.Errorf("segment: unknown mode %q", mode)
	}

	regions := make([]Region, 0, len(cuts)+1)
	regions = append(regions, Region{
		Name:   RegionFull,
		Bounds: image.Rect(0, 0, w, h),
		Image:  img,
	})
	for _, cut := range cuts {
		crop := cut.Bounds.Add(b.Min)
		cut.Image = utils.CropImageRect(img, crop)
		regions = append(regions, cut)
	}
	return regions, nil
}
