package mapimage

import (
	"image"
	"image/color"
	"sort"
)

// Region palette, matching the vendor app's rendering.
var (
	colorChannel   = color.RGBA{128, 128, 128, 255} // gray
	colorGrass     = color.RGBA{34, 139, 34, 255}   // forest green
	colorObstacle  = color.RGBA{240, 128, 128, 255} // light coral
	colorForbidden = color.RGBA{0, 0, 0, 255}
	colorBlank     = color.RGBA{0, 0, 255, 255}
	colorCharger   = color.RGBA{255, 255, 0, 255}
	colorPath      = color.RGBA{124, 252, 0, 255} // lawn green
	colorMarkerTag = color.RGBA{255, 0, 0, 255}
)

type pixel struct {
	x int
	y int
}

// fillPolygon rasterizes a filled polygon with an even-odd scanline
// sweep, then strokes the outline so single-pixel edges survive
// rounding.
func fillPolygon(img *image.RGBA, pts []pixel, c color.RGBA) {
	if len(pts) < 3 {
		return
	}

	minY, maxY := pts[0].y, pts[0].y
	for _, p := range pts[1:] {
		if p.y < minY {
			minY = p.y
		}
		if p.y > maxY {
			maxY = p.y
		}
	}
	bounds := img.Bounds()
	if minY < bounds.Min.Y {
		minY = bounds.Min.Y
	}
	if maxY > bounds.Max.Y-1 {
		maxY = bounds.Max.Y - 1
	}

	xs := make([]float64, 0, len(pts))
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		scan := float64(y) + 0.5
		for i := range pts {
			a := pts[i]
			b := pts[(i+1)%len(pts)]
			if a.y == b.y {
				continue
			}
			y0, y1 := float64(a.y), float64(b.y)
			if (scan < y0) == (scan < y1) {
				continue
			}
			x := float64(a.x) + (scan-y0)/(y1-y0)*float64(b.x-a.x)
			xs = append(xs, x)
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for x := int(xs[i] + 0.5); x < int(xs[i+1]+0.5); x++ {
				if x >= bounds.Min.X && x < bounds.Max.X {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}

	strokePolygon(img, pts, c)
}

// strokePolygon draws the closed outline of a polygon.
func strokePolygon(img *image.RGBA, pts []pixel, c color.RGBA) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		drawLine(img, a, b, c)
	}
}

// drawPolyline draws an open run of line segments.
func drawPolyline(img *image.RGBA, pts []pixel, c color.RGBA) {
	for i := 0; i+1 < len(pts); i++ {
		drawLine(img, pts[i], pts[i+1], c)
	}
}

// drawLine is Bresenham's algorithm, clipped to the image bounds.
func drawLine(img *image.RGBA, a, b pixel, c color.RGBA) {
	bounds := img.Bounds()
	dx := abs(b.x - a.x)
	dy := -abs(b.y - a.y)
	sx := 1
	if a.x > b.x {
		sx = -1
	}
	sy := 1
	if a.y > b.y {
		sy = -1
	}
	err := dx + dy

	x, y := a.x, a.y
	for {
		if image.Pt(x, y).In(bounds) {
			img.SetRGBA(x, y, c)
		}
		if x == b.x && y == b.y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// drawCircleOutline draws an unfilled midpoint circle.
func drawCircleOutline(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	bounds := img.Bounds()
	set := func(x, y int) {
		if image.Pt(x, y).In(bounds) {
			img.SetRGBA(x, y, c)
		}
	}

	x, y := r, 0
	err := 1 - r
	for x >= y {
		set(cx+x, cy+y)
		set(cx+y, cy+x)
		set(cx-y, cy+x)
		set(cx-x, cy+y)
		set(cx-x, cy-y)
		set(cx-y, cy-x)
		set(cx+y, cy-x)
		set(cx+x, cy-y)
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
