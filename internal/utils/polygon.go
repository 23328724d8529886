package utils

import "math"

// SimplifyPolygon reduces the number of points in a polygon using the
// Douglas–Peucker algorithm with the given tolerance epsilon.
// The polygon is treated as closed for simplification continuity.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	open := append([]Point(nil), pts...)
	keep := make([]bool, len(open))
	dpSimplify(open, 0, len(open)-1, epsilon, keep)
	// Always keep endpoints to ensure closure continuity
	keep[0] = true
	keep[len(open)-1] = true
	out := make([]Point, 0, len(open))
	for i, k := range keep {
		if k {
			out = append(out, open[i])
		}
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	// Distance from point p to segment ab
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		dx, dy := p.X-a.X, p.Y-a.Y
		return math.Hypot(dx, dy)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	den := math.Hypot(vx, vy)
	return num / den
}

// PolygonArea returns the absolute enclosed area of a closed polygon
// using the shoelace formula.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// PolygonPerimeter returns the closed-path length of a polygon.
func PolygonPerimeter(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		sum += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return sum
}
