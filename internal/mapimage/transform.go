package mapimage

// Transform projects device coordinates onto canvas pixels.
//
// X is normalized over the bounding box and scaled to the canvas
// width; Y is normalized the same way then flipped, because device
// space grows upward and image space grows downward.
type Transform struct {
	MinX, MaxX float64
	MinY, MaxY float64
	Width      int
	Height     int
}

// NewTransform builds a Transform from a bounding box and the pixel
// density. The canvas spans the box extent times pixelsPerUnit.
func NewTransform(minX, maxX, minY, maxY, pixelsPerUnit float64) (Transform, error) {
	if maxX <= minX || maxY <= minY {
		return Transform{}, ErrDegenerateBounds
	}
	return Transform{
		MinX:   minX,
		MaxX:   maxX,
		MinY:   minY,
		MaxY:   maxY,
		Width:  int((maxX - minX) * pixelsPerUnit),
		Height: int((maxY - minY) * pixelsPerUnit),
	}, nil
}

// Apply maps one device-space point to pixel coordinates.
func (t Transform) Apply(x, y float64) (int, int) {
	xNorm := (x - t.MinX) / (t.MaxX - t.MinX)
	yNorm := (y - t.MinY) / (t.MaxY - t.MinY)
	return int(xNorm * float64(t.Width)), int((1 - yNorm) * float64(t.Height))
}

// Invert maps a pixel back into device space. It is the inverse of
// Apply up to the integer truncation Apply performs, so an
// Invert-then-Apply round trip lands within one pixel.
func (t Transform) Invert(px, py int) (float64, float64) {
	x := t.MinX + float64(px)/float64(t.Width)*(t.MaxX-t.MinX)
	y := t.MinY + (1-float64(py)/float64(t.Height))*(t.MaxY-t.MinY)
	return x, y
}

// applyPoly maps a polygon into pixel space.
func (t Transform) applyPoly(poly Polygon) []pixel {
	out := make([]pixel, len(poly))
	for i, p := range poly {
		x, y := t.Apply(p.X, p.Y)
		out[i] = pixel{x, y}
	}
	return out
}
