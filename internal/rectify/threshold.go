package rectify

import (
	"image"

	"github.com/MeKo-Tech/voucherscan/internal/mempool"
)

// adaptiveThreshold binarizes a grayscale image against the local mean of a
// window×window neighborhood computed via an integral image. A pixel is
// foreground when it is brighter than its local mean by more than c, which
// keeps uniform regions dark and highlights document boundaries under uneven
// lighting. Returns the mask and the foreground coverage ratio.
// The mask comes from the buffer pool; release it with releaseMask.
func adaptiveThreshold(gray *image.Gray, window int, c float64) ([]bool, float64) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w == 0 || h == 0 {
		return nil, 0
	}
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}

	integral := integralImage(gray, w, h)
	defer mempool.PutInt64(integral)

	mask := mempool.GetBool(w * h)
	half := window / 2
	foreground := 0
	for y := range h {
		for x := range w {
			x0, y0 := x-half, y-half
			x1, y1 := x+half, y+half
			if x0 < 0 {
				x0 = 0
			}
			if y0 < 0 {
				y0 = 0
			}
			if x1 >= w {
				x1 = w - 1
			}
			if y1 >= h {
				y1 = h - 1
			}
			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := windowSum(integral, w, x0, y0, x1, y1)
			mean := float64(sum) / float64(area)
			if float64(gray.Pix[y*gray.Stride+x]) > mean+c {
				mask[y*w+x] = true
				foreground++
			}
		}
	}
	return mask, float64(foreground) / float64(w*h)
}

func releaseMask(mask []bool) { mempool.PutBool(mask) }

// integralImage builds a summed-area table where entry (y*w+x) holds the sum
// of all pixels in the rectangle [0,0]..[x,y].
func integralImage(gray *image.Gray, w, h int) []int64 {
	integral := mempool.GetInt64(w * h)
	for y := range h {
		var rowSum int64
		for x := range w {
			rowSum += int64(gray.Pix[y*gray.Stride+x])
			if y == 0 {
				integral[y*w+x] = rowSum
			} else {
				integral[y*w+x] = integral[(y-1)*w+x] + rowSum
			}
		}
	}
	return integral
}

// windowSum reads the inclusive rectangle [x0,y0]..[x1,y1] from the table.
func windowSum(integral []int64, w, x0, y0, x1, y1 int) int64 {
	sum := integral[y1*w+x1]
	if x0 > 0 {
		sum -= integral[y1*w+x0-1]
	}
	if y0 > 0 {
		sum -= integral[(y0-1)*w+x1]
	}
	if x0 > 0 && y0 > 0 {
		sum += integral[(y0-1)*w+x0-1]
	}
	return sum
}
