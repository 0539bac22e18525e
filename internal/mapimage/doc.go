// Package mapimage renders mower map artifacts from vendor geometry
// documents.
//
// # Geometry
//
// The vendor map document carries one polygon collection per region
// class (work areas, channels, obstacles, forbidden zones, placed
// blanks, charger channels). Each collection entry encodes its
// vertices as a JSON array nested inside a string; ParseGeometry
// unwraps both layers. The bounding box unions every polygon and is
// seeded at the origin, matching the vendor app's framing.
//
// # Projection
//
// Device coordinates project onto a canvas sized at a fixed pixel
// density per device unit, with the Y axis flipped because device
// space grows upward and image space grows downward. The bounds
// captured at base-render time stay authoritative for path and live
// overlays until the next geometry load.
//
// # Artifacts
//
// Three stacked artifacts exist per device: the base region canvas,
// the path overlay (recorded path replayed over the base, extended
// incrementally from the live-point buffer), and the live composite
// (path overlay plus a scaled, rotated robot marker and position
// ring). Artifacts are replaced wholesale on success; a failed render
// keeps the previous image so consumers never observe a half-drawn
// canvas.
package mapimage
