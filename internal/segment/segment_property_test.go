package segment

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSplitProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("quarters exactly tile the image", prop.ForAll(
		func(w, h int) bool {
			regions, err := Split(image.NewRGBA(image.Rect(0, 0, w, h)), ModeQuarters)
			if err != nil {
				return false
			}
			area := 0
			for _, r := range regions[1:] {
				area += r.Bounds.Dx() * r.Bounds.Dy()
			}
			return area == w*h
		},
		gen.IntRange(2, 400),
		gen.IntRange(2, 400),
	))

	properties.Property("halves cover the full width without overlap", prop.ForAll(
		func(w, h int) bool {
			regions, err := Split(image.NewRGBA(image.Rect(0, 0, w, h)), ModeHalves)
			if err != nil {
				return false
			}
			left, right := regions[1].Bounds, regions[2].Bounds
			return left.Max.X == right.Min.X &&
				left.Dx()+right.Dx() == w &&
				left.Dy() == h && right.Dy() == h
		},
		gen.IntRange(2, 400),
		gen.IntRange(2, 400),
	))

	properties.Property("region order is deterministic", prop.ForAll(
		func(w, h int) bool {
			a, err1 := Split(image.NewRGBA(image.Rect(0, 0, w, h)), ModeQuarters)
			b, err2 := Split(image.NewRGBA(image.Rect(0, 0, w, h)), ModeQuarters)
			if err1 != nil || err2 != nil {
				return false
			}
			for i := range a {
				if a[i].Name != b[i].Name || a[i].Bounds != b[i].Bounds {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 100),
		gen.IntRange(2, 100),
	))

	properties.TestingRun(t)
}
