package mapimage

import "errors"

var (
	// ErrBadGeometry indicates the vendor map document or one of its
	// embedded point strings failed to decode.
	ErrBadGeometry = errors.New("mapimage: bad geometry")

	// ErrNoGeometry indicates a render was requested before any map
	// document was loaded.
	ErrNoGeometry = errors.New("mapimage: no geometry loaded")

	// ErrDegenerateBounds indicates the geometry has zero extent on
	// one axis and cannot be projected onto a canvas.
	ErrDegenerateBounds = errors.New("mapimage: degenerate bounds")
)
