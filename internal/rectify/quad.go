package rectify

import (
	"math"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// compactClosed merges cyclically adjacent vertices closer than eps. Polygon
// simplification keeps both endpoints of the traced boundary, and since the
// trace ends next to where it started the closing vertex often duplicates
// the first corner.
func compactClosed(pts []utils.Point, eps float64) []utils.Point {
	if len(pts) < 2 {
		return pts
	}
	out := pts[:0:0]
	for i, p := range pts {
		next := pts[(i+1)%len(pts)]
		if math.Hypot(next.X-p.X, next.Y-p.Y) < eps {
			continue
		}
		out = append(out, p)
	}
	return out
}

// orderQuad arranges four corners as top-left, top-right, bottom-right,
// bottom-left. The top-left corner has the smallest coordinate sum and the
// bottom-right the largest; the remaining two split on the x-y difference.
func orderQuad(pts []utils.Point) Quad {
	var q Quad
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		sum := p.X + p.Y
		diff := p.X - p.Y
		if sum < minSum {
			minSum = sum
			q[0] = p
		}
		if sum > maxSum {
			maxSum = sum
			q[2] = p
		}
		if diff > maxDiff {
			maxDiff = diff
			q[1] = p
		}
		if diff < minDiff {
			minDiff = diff
			q[3] = p
		}
	}
	return q
}
