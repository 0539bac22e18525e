package api

import (
	"errors"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sunseeker-core/internal/device"
)

// handleListDevices returns a snapshot of every loaded device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.engine.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device snapshot by serial number.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	dev, err := s.engine.Snapshot(serial)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceHistory returns recent field transitions for a device,
// newest first. The limit query parameter caps the result size.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history not enabled")
		return
	}

	serial := chi.URLParam(r, "serial")
	if _, err := s.engine.Snapshot(serial); err != nil {
		writeNotFound(w, "device not found")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), serial, limit)
	if err != nil {
		writeInternalError(w, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transitions": entries, "count": len(entries)})
}

// imageKind selects one of a device's rendered map artifacts.
type imageKind int

const (
	baseImage imageKind = iota
	pathImage
	liveImage
	heatImage
	wifiImage
)

// deviceImageHandler returns a handler serving one rendered artifact
// as PNG. Artifacts that have not been rendered yet return 404.
func (s *Server) deviceImageHandler(kind imageKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial := chi.URLParam(r, "serial")

		dev, err := s.engine.Snapshot(serial)
		if err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				writeNotFound(w, "device not found")
				return
			}
			writeInternalError(w, "failed to get device")
			return
		}

		var img image.Image
		switch kind {
		case baseImage:
			img = dev.BaseImage
		case pathImage:
			img = dev.PathImage
		case liveImage:
			img = dev.LiveImage
		case heatImage:
			img = dev.HeatMap
		case wifiImage:
			img = dev.WifiMap
		}
		if img == nil {
			writeNotFound(w, "image not rendered")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, img); err != nil {
			s.logger.Warn("png encode failed", "serial", serial, "error", err)
		}
	}
}
