package device

// DeepCopy returns an isolated copy of the device suitable for
// handing to API responses and observers while the original keeps
// mutating under the coordinator's lock.
//
// Raster images are shared: the renderer replaces them wholesale and
// never draws into a published image, so sharing is safe and avoids
// copying multi-megabyte canvases per snapshot.
func (d *Device) DeepCopy() *Device {
	cp := *d

	if d.Schedule != nil {
		cp.Schedule = d.Schedule.Copy()
	}

	cp.Zones = make([]*Zone, len(d.Zones))
	for i, z := range d.Zones {
		zc := *z
		cp.Zones[i] = &zc
	}

	if d.MapData != nil {
		cp.MapData = make([]byte, len(d.MapData))
		copy(cp.MapData, d.MapData)
	}
	if d.LivePathPoints != nil {
		cp.LivePathPoints = make([]PathPoint, len(d.LivePathPoints))
		copy(cp.LivePathPoints, d.LivePathPoints)
	}
	if d.RealPath != nil {
		cp.RealPath = make([]PathPoint, len(d.RealPath))
		copy(cp.RealPath, d.RealPath)
	}

	return &cp
}
