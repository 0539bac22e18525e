package mapimage

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// markerSize is the edge length of marker assets in pixels. Vendor
// avatars are normalized to the same size before caching.
const markerSize = 50

// DefaultMarker builds the fallback robot marker used when no vendor
// avatar is available: a filled arrowhead pointing up, on a
// transparent square.
func DefaultMarker() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, markerSize, markerSize))
	body := color.RGBA{40, 40, 40, 255}

	nose := pixel{markerSize / 2, 4}
	left := pixel{6, markerSize - 6}
	right := pixel{markerSize - 6, markerSize - 6}
	tail := pixel{markerSize / 2, markerSize - 14}

	fillPolygon(img, []pixel{nose, left, tail}, body)
	fillPolygon(img, []pixel{nose, tail, right}, body)
	return img
}

// NormalizeMarker scales an arbitrary avatar image to the standard
// marker size.
func NormalizeMarker(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, markerSize, markerSize))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// scaleImage resizes src to w by h pixels.
func scaleImage(src image.Image, w, h int) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// rotateImage rotates src counter-clockwise about its center into a
// same-sized canvas. Corners that rotate outside the canvas are
// clipped, matching how the vendor app rotates its marker.
func rotateImage(src image.Image, radians float64) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	cx := float64(b.Dx()) / 2
	cy := float64(b.Dy()) / 2
	sin, cos := math.Sincos(radians)

	// Affine source-to-destination map: translate the center to the
	// origin, rotate, translate back. Positive angles turn
	// counter-clockwise in the flipped (y-down) pixel space.
	m := f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy,
	}
	xdraw.ApproxBiLinear.Transform(dst, m, src, b, xdraw.Over, nil)
	return dst
}
