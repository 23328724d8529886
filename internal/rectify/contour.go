package rectify

import (
	"container/list"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// minComponentPixels filters speckle components before tracing.
const minComponentPixels = 16

// largestContour labels the connected foreground components of mask, traces
// the outer boundary of each, and returns the boundary enclosing the largest
// area. Returns nil when no component is large enough to trace.
func largestContour(mask []bool, w, h int) []utils.Point {
	labels := make([]int, w*h)

	var best []utils.Point
	bestArea := 0.0
	next := 1
	for y := range h {
		for x := range w {
			idx := y*w + x
			if !mask[idx] || labels[idx] != 0 {
				continue
			}
			size := floodFill(mask, labels, w, h, x, y, next)
			if size >= minComponentPixels {
				contour := traceContourMoore(labels, w, h, x, y, next)
				if area := utils.PolygonArea(contour); area > bestArea {
					bestArea = area
					best = contour
				}
			}
			next++
		}
	}
	return best
}

// floodFill labels the 4-connected component containing (sx, sy) and returns
// its pixel count.
func floodFill(mask []bool, labels []int, w, h, sx, sy, label int) int {
	queue := list.New()
	queue.PushBack(utils.Point{X: float64(sx), Y: float64(sy)})
	labels[sy*w+sx] = label
	size := 0
	for queue.Len() > 0 {
		front := queue.Front()
		queue.Remove(front)
		p := front.Value.(utils.Point)
		x, y := int(p.X), int(p.Y)
		size++
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			nidx := ny*w + nx
			if mask[nidx] && labels[nidx] == 0 {
				labels[nidx] = label
				queue.PushBack(utils.Point{X: float64(nx), Y: float64(ny)})
			}
		}
	}
	return size
}

// mooreOffsets walks the 8-neighborhood clockwise starting west.
var mooreOffsets = [8][2]int{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// traceContourMoore follows the outer boundary of the component with the
// given label using Moore-neighbor tracing with Jacob's stopping criterion.
// (sx, sy) must be the first component pixel in scan order, so the neighbor
// to its west is guaranteed background.
func traceContourMoore(labels []int, w, h, sx, sy, label int) []utils.Point {
	isSet := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == label
	}

	contour := []utils.Point{{X: float64(sx), Y: float64(sy)}}
	cx, cy := sx, sy
	// Entered the start pixel moving east, so the backtrack neighbor is
	// its west background pixel.
	dir := 4
	maxSteps := 4 * (w + h) * 4
	for step := 0; step < maxSteps; step++ {
		found := false
		// Scan clockwise starting just past the backtrack neighbor so
		// the trace hugs the boundary.
		for i := range 8 {
			d := (dir + 5 + i) % 8
			nx, ny := cx+mooreOffsets[d][0], cy+mooreOffsets[d][1]
			if isSet(nx, ny) {
				cx, cy = nx, ny
				dir = d
				found = true
				break
			}
		}
		if !found {
			break // isolated pixel
		}
		if cx == sx && cy == sy {
			break
		}
		contour = append(contour, utils.Point{X: float64(cx), Y: float64(cy)})
	}
	return contour
}
