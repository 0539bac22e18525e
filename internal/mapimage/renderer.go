package mapimage

import (
	"bytes"
	"image"
	"image/draw"

	// Heat maps, wifi maps and robot avatars arrive in whatever
	// format the vendor CDN serves.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nerrad567/sunseeker-core/internal/device"
)

// defaultPixelsPerUnit is the canvas density: pixels per device unit.
const defaultPixelsPerUnit = 25.0

// markerRingRadius is the radius of the position ring drawn around
// the robot marker on live composites.
const markerRingRadius = 50

// Renderer turns a device's geometry, recorded path and live position
// into raster artifacts.
//
// All methods mutate only the passed device and must run under the
// coordinator's per-serial lock. Artifacts are replaced wholesale on
// success; on error the device keeps its previous images.
type Renderer struct {
	pixelsPerUnit float64
}

// NewRenderer creates a renderer. A non-positive pixelsPerUnit falls
// back to the default density.
func NewRenderer(pixelsPerUnit float64) *Renderer {
	if pixelsPerUnit <= 0 {
		pixelsPerUnit = defaultPixelsPerUnit
	}
	return &Renderer{pixelsPerUnit: pixelsPerUnit}
}

// GenerateBase parses the device's raw map document and renders the
// base region canvas.
//
// Region classes draw in a fixed order so later classes overdraw
// earlier ones: channel, work, obstacle, forbidden, blank (outline
// only), charger. Bounds, canvas size and phi on the device are
// refreshed from the parsed geometry.
func (r *Renderer) GenerateBase(d *device.Device) error {
	if len(d.MapData) == 0 {
		return ErrNoGeometry
	}

	g, err := ParseGeometry(d.MapData)
	if err != nil {
		return err
	}

	minX, maxX, minY, maxY := g.Bounds()
	tr, err := NewTransform(minX, maxX, minY, maxY, r.pixelsPerUnit)
	if err != nil {
		return err
	}

	img := image.NewRGBA(image.Rect(0, 0, tr.Width, tr.Height))
	for _, poly := range g.Channel {
		fillPolygon(img, tr.applyPoly(poly), colorChannel)
	}
	for _, poly := range g.Work {
		fillPolygon(img, tr.applyPoly(poly), colorGrass)
	}
	for _, poly := range g.Obstacle {
		fillPolygon(img, tr.applyPoly(poly), colorObstacle)
	}
	for _, poly := range g.Forbidden {
		fillPolygon(img, tr.applyPoly(poly), colorForbidden)
	}
	for _, poly := range g.Blank {
		strokePolygon(img, tr.applyPoly(poly), colorBlank)
	}
	for _, poly := range g.Charger {
		fillPolygon(img, tr.applyPoly(poly), colorCharger)
	}

	d.MapMinX, d.MapMaxX = minX, maxX
	d.MapMinY, d.MapMaxY = minY, maxY
	d.CanvasWidth, d.CanvasHeight = tr.Width, tr.Height
	d.MapPhi = g.Phi
	d.BaseImage = img
	d.ImageState = device.ImageStateLoaded
	d.MapUpdated = true
	return nil
}

// GeneratePath replays the device's recorded path onto a fresh copy
// of the base canvas.
//
// With fewer than two recorded points the path overlay is cleared so
// live composites fall back to the bare base image.
func (r *Renderer) GeneratePath(d *device.Device) error {
	if d.BaseImage == nil {
		return ErrNoGeometry
	}
	if len(d.RealPath) < 2 {
		d.PathImage = nil
		return nil
	}

	tr, err := r.deviceTransform(d)
	if err != nil {
		return err
	}

	img := cloneRGBA(d.BaseImage)
	drawPolyline(img, tr.applyPoints(d.RealPath), colorPath)
	d.PathImage = img
	return nil
}

// AppendLivePoints drains the pending live-point buffer onto the path
// overlay.
//
// Fewer than two buffered points is a no-op; the buffer keeps
// accumulating until a segment can be drawn. After drawing, the
// buffer compacts to its last point so the next segment continues
// from the current position.
func (r *Renderer) AppendLivePoints(d *device.Device) error {
	if len(d.LivePathPoints) < 2 {
		return nil
	}

	base := d.PathImage
	if base == nil {
		base = d.BaseImage
	}
	if base == nil {
		return ErrNoGeometry
	}

	tr, err := r.deviceTransform(d)
	if err != nil {
		return err
	}

	img := cloneRGBA(base)
	drawPolyline(img, tr.applyPoints(d.LivePathPoints), colorPath)
	d.PathImage = img
	d.LivePathPoints = []device.PathPoint{d.LivePathPoints[len(d.LivePathPoints)-1]}
	return nil
}

// GenerateLive composes the live map: path overlay (or base), robot
// marker scaled to the canvas, rotated to the current orientation and
// pasted centered on the robot position, plus a ring highlighting the
// position.
func (r *Renderer) GenerateLive(d *device.Device) error {
	if err := r.AppendLivePoints(d); err != nil {
		return err
	}

	base := d.PathImage
	if base == nil {
		base = d.BaseImage
	}
	if base == nil {
		return ErrNoGeometry
	}

	tr, err := r.deviceTransform(d)
	if err != nil {
		return err
	}

	img := cloneRGBA(base)
	px, py := tr.Apply(d.X, d.Y)

	marker := d.RobotMarker
	if marker == nil {
		marker = DefaultMarker()
	}

	// Marker scale tracks the canvas so the robot stays legible on
	// small and large properties alike.
	mb := marker.Bounds()
	mul := float64(tr.Width+tr.Height) / 2 / 1000
	scaled := scaleImage(marker, int(float64(mb.Dx())*mul), int(float64(mb.Dy())*mul))
	rotated := rotateImage(scaled, d.Orientation)

	rb := rotated.Bounds()
	at := image.Pt(px-rb.Dx()/2, py-rb.Dy()/2)
	draw.Draw(img, rb.Add(at), rotated, rb.Min, draw.Over)

	drawCircleOutline(img, px, py, markerRingRadius, colorMarkerTag)

	d.LiveImage = img
	d.LiveImageState = device.ImageStateLoaded
	return nil
}

// ReloadMaps regenerates every artifact from the geometry already on
// the device: base, then path replay, then live composite.
func (r *Renderer) ReloadMaps(d *device.Device) error {
	if len(d.MapData) == 0 {
		return ErrNoGeometry
	}
	if err := r.GenerateBase(d); err != nil {
		return err
	}
	if err := r.GeneratePath(d); err != nil {
		return err
	}
	return r.GenerateLive(d)
}

// deviceTransform rebuilds the projection from the bounds stored on
// the device at base-render time.
func (r *Renderer) deviceTransform(d *device.Device) (Transform, error) {
	if d.CanvasWidth == 0 || d.CanvasHeight == 0 {
		return Transform{}, ErrNoGeometry
	}
	if d.MapMaxX <= d.MapMinX || d.MapMaxY <= d.MapMinY {
		return Transform{}, ErrDegenerateBounds
	}
	return Transform{
		MinX:   d.MapMinX,
		MaxX:   d.MapMaxX,
		MinY:   d.MapMinY,
		MaxY:   d.MapMaxY,
		Width:  d.CanvasWidth,
		Height: d.CanvasHeight,
	}, nil
}

// applyPoints maps a run of path points into pixel space.
func (t Transform) applyPoints(pts []device.PathPoint) []pixel {
	out := make([]pixel, len(pts))
	for i, p := range pts {
		x, y := t.Apply(p.X, p.Y)
		out[i] = pixel{x, y}
	}
	return out
}

// Decode parses a downloaded image (heat map, wifi map or robot
// avatar) in any registered format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// cloneRGBA copies an image into a fresh mutable RGBA canvas.
func cloneRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
