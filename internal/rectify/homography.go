package rectify

import (
	"errors"
	"math"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

var errSingular = errors.New("rectify: singular homography system")

// computeHomography solves for the 3x3 projective transform mapping the four
// src points onto the four dst points, with h22 fixed at 1. The four
// correspondences give an 8x8 linear system solved by Gaussian elimination.
func computeHomography(src, dst [4]utils.Point) ([9]float64, error) {
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		a[2*i] = [8]float64{sx, sy, 1, 0, 0, 0, -dx * sx, -dx * sy}
		b[2*i] = dx
		a[2*i+1] = [8]float64{0, 0, 0, sx, sy, 1, -dy * sx, -dy * sy}
		b[2*i+1] = dy
	}

	x, err := solve8x8(a, b)
	if err != nil {
		return [9]float64{}, err
	}
	return [9]float64{x[0], x[1], x[2], x[3], x[4], x[5], x[6], x[7], 1}, nil
}

// solve8x8 performs Gaussian elimination with partial pivoting.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, error) {
	const n = 8
	for col := range n {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, errSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	var x [8]float64
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// applyHomography maps a point through the transform, normalizing by the
// projective component.
func applyHomography(h [9]float64, p utils.Point) utils.Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return utils.Point{}
	}
	return utils.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}
