package rectify

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// warpQuad maps the quadrilateral region of img onto an axis-aligned
// rectangle. The target width is the longer of the top and bottom edges and
// the target height the longer of the left and right edges, so no edge of
// the document is compressed. Returns nil when the quad is degenerate.
func warpQuad(img image.Image, quad Quad) image.Image {
	tw, th := targetSize(quad)
	if tw < 2 || th < 2 {
		return nil
	}

	dst := [4]utils.Point{
		{X: 0, Y: 0},
		{X: float64(tw - 1), Y: 0},
		{X: float64(tw - 1), Y: float64(th - 1)},
		{X: 0, Y: float64(th - 1)},
	}
	// Inverse mapping: for each output pixel find its source location.
	inv, err := computeHomography(dst, [4]utils.Point(quad))
	if err != nil {
		return nil
	}

	src := toRGBA(img)
	out := image.NewRGBA(image.Rect(0, 0, tw, th))
	for y := range th {
		for x := range tw {
			p := applyHomography(inv, utils.Point{X: float64(x), Y: float64(y)})
			out.SetRGBA(x, y, bilinearSample(src, p.X, p.Y))
		}
	}
	return out
}

// targetSize derives output dimensions from the longer of each pair of
// opposing quad edges. Corners are inclusive pixel coordinates, so the
// pixel span is one more than the edge length.
func targetSize(quad Quad) (int, int) {
	top := edgeLength(quad[0], quad[1])
	bottom := edgeLength(quad[3], quad[2])
	left := edgeLength(quad[0], quad[3])
	right := edgeLength(quad[1], quad[2])
	w := int(math.Round(math.Max(top, bottom))) + 1
	h := int(math.Round(math.Max(left, right))) + 1
	return w, h
}

func edgeLength(a, b utils.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// bilinearSample interpolates the four pixels around (fx, fy). Samples
// outside the image are black.
func bilinearSample(img *image.RGBA, fx, fy float64) color.RGBA {
	b := img.Bounds()
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	if x0 < b.Min.X-1 || y0 < b.Min.Y-1 || x0 > b.Max.X-1 || y0 > b.Max.Y-1 {
		return color.RGBA{A: 255}
	}

	dx := fx - float64(x0)
	dy := fy - float64(y0)
	c00 := sampleClamped(img, x0, y0)
	c10 := sampleClamped(img, x0+1, y0)
	c01 := sampleClamped(img, x0, y0+1)
	c11 := sampleClamped(img, x0+1, y0+1)

	return color.RGBA{
		R: lerp2(c00.R, c10.R, c01.R, c11.R, dx, dy),
		G: lerp2(c00.G, c10.G, c01.G, c11.G, dx, dy),
		B: lerp2(c00.B, c10.B, c01.B, c11.B, dx, dy),
		A: 255,
	}
}

func sampleClamped(img *image.RGBA, x, y int) color.RGBA {
	b := img.Bounds()
	if x < b.Min.X {
		x = b.Min.X
	}
	if y < b.Min.Y {
		y = b.Min.Y
	}
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}
	return img.RGBAAt(x, y)
}

func lerp2(c00, c10, c01, c11 uint8, dx, dy float64) uint8 {
	top := float64(c00)*(1-dx) + float64(c10)*dx
	bottom := float64(c01)*(1-dx) + float64(c11)*dx
	v := top*(1-dy) + bottom*dy
	return uint8(math.Round(math.Min(255, math.Max(0, v))))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
