package mapimage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Point is an (x, y) pair in device units.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered ring of vertices in device units.
type Polygon []Point

// Geometry is the parsed map payload for one property: one polygon
// collection per region class plus the rotation hint.
type Geometry struct {
	Work      []Polygon
	Channel   []Polygon
	Obstacle  []Polygon
	Forbidden []Polygon
	Blank     []Polygon
	Charger   []Polygon

	// WorkZones carries the zone identity of each work region, in
	// document order. Zone lists are seeded from these at bootstrap.
	WorkZones []ZoneMeta

	// Phi is the vendor rotation hint in radians. Zero when the
	// payload omits it.
	Phi float64
}

// ZoneMeta is the zone identity attached to a work region.
type ZoneMeta struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// region is one wire entry: the vertices arrive as a JSON array
// encoded inside a string.
type region struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Points string `json:"points"`
}

// geometryPayload mirrors the vendor map document. Field names carry
// the vendor's spelling, including "coordniate".
type geometryPayload struct {
	Work      []region `json:"region_work"`
	Channel   []region `json:"region_channel"`
	Obstacle  []region `json:"region_obstacle"`
	Forbidden []region `json:"region_forbidden"`
	Blank     []region `json:"region_placed_blank"`
	Charger   []region `json:"region_charger_channel"`

	Coordinate *struct {
		Phi float64 `json:"phi"`
	} `json:"map_coordniate"`
}

// ParseGeometry decodes a raw vendor map document.
//
// Each region's vertex list is itself a JSON string of [x, y] pairs;
// a malformed inner string fails the whole parse so a partial map is
// never rendered.
func ParseGeometry(data []byte) (*Geometry, error) {
	var payload geometryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadGeometry, err)
	}

	g := &Geometry{}
	if payload.Coordinate != nil {
		g.Phi = payload.Coordinate.Phi
	}

	var err error
	if g.Work, err = parseRegions(payload.Work); err != nil {
		return nil, fmt.Errorf("region_work: %w", err)
	}
	for _, entry := range payload.Work {
		g.WorkZones = append(g.WorkZones, ZoneMeta{ID: entry.ID, Name: entry.Name})
	}
	if g.Channel, err = parseRegions(payload.Channel); err != nil {
		return nil, fmt.Errorf("region_channel: %w", err)
	}
	if g.Obstacle, err = parseRegions(payload.Obstacle); err != nil {
		return nil, fmt.Errorf("region_obstacle: %w", err)
	}
	if g.Forbidden, err = parseRegions(payload.Forbidden); err != nil {
		return nil, fmt.Errorf("region_forbidden: %w", err)
	}
	if g.Blank, err = parseRegions(payload.Blank); err != nil {
		return nil, fmt.Errorf("region_placed_blank: %w", err)
	}
	if g.Charger, err = parseRegions(payload.Charger); err != nil {
		return nil, fmt.Errorf("region_charger_channel: %w", err)
	}

	return g, nil
}

func parseRegions(entries []region) ([]Polygon, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	polygons := make([]Polygon, 0, len(entries))
	for _, entry := range entries {
		poly, err := parsePoints(entry.Points)
		if err != nil {
			return nil, err
		}
		polygons = append(polygons, poly)
	}
	return polygons, nil
}

func parsePoints(raw string) (Polygon, error) {
	var pairs [][]float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &pairs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadGeometry, err)
	}
	poly := make(Polygon, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			return nil, fmt.Errorf("%w: point with %d coordinates", ErrBadGeometry, len(pair))
		}
		poly = append(poly, Point{X: pair[0], Y: pair[1]})
	}
	return poly, nil
}

// Bounds returns the union bounding box of every polygon in every
// collection. The box is seeded at the origin, so maps that sit
// entirely in one quadrant still include (0, 0); this matches how the
// vendor app frames its canvas.
func (g *Geometry) Bounds() (minX, maxX, minY, maxY float64) {
	for _, collection := range [][]Polygon{
		g.Work, g.Channel, g.Obstacle, g.Forbidden, g.Blank, g.Charger,
	} {
		for _, poly := range collection {
			for _, p := range poly {
				if p.X < minX {
					minX = p.X
				}
				if p.X > maxX {
					maxX = p.X
				}
				if p.Y < minY {
					minY = p.Y
				}
				if p.Y > maxY {
					maxY = p.Y
				}
			}
		}
	}
	return minX, maxX, minY, maxY
}
