package cloud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/sunseeker-core/internal/device"
	"github.com/nerrad567/sunseeker-core/internal/engine"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/config"
	"github.com/nerrad567/sunseeker-core/internal/infrastructure/mqtt"
)

// repollKind keys the deferred post-command poll on the coordinator.
// It matches the engine's fault repoll key so the two replace each
// other instead of stacking.
const repollKind = "repoll"

// requestTimeout bounds the background fetches triggered by push
// flags.
const requestTimeout = 30 * time.Second

// Sync drives the cloud side of state synchronisation: the initial
// bootstrap, the fetches the engine requests in response to pushes,
// and the command wrappers that surface rejections on the device.
//
// It implements engine.Syncer; every Request* method returns
// immediately and does its work on a goroutine.
type Sync struct {
	client  *Client
	engine  *engine.Engine
	variant device.Variant

	repollDelay    time.Duration
	markerOverride string
	logger         Logger

	mu        sync.RWMutex
	deviceIDs map[string]string
}

// NewSync creates the sync service. Bind must be called with the
// engine before any cloud work runs; the two reference each other.
func NewSync(client *Client, syncCfg config.SyncConfig, mapCfg config.MapConfig) *Sync {
	repoll := time.Duration(syncCfg.CommandRepollDelay) * time.Second
	if repoll <= 0 {
		repoll = 10 * time.Second
	}
	return &Sync{
		client:         client,
		variant:        device.Variant(client.variant),
		repollDelay:    repoll,
		markerOverride: mapCfg.MarkerURLOverride,
		logger:         noopLogger{},
		deviceIDs:      make(map[string]string),
	}
}

// Bind attaches the engine.
func (s *Sync) Bind(eng *engine.Engine) { s.engine = eng }

// SetLogger installs a logger. Passing nil restores the no-op logger.
func (s *Sync) SetLogger(l Logger) {
	if l == nil {
		l = noopLogger{}
	}
	s.logger = l
}

func (s *Sync) deviceID(serial string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceIDs[serial]
}

// ===== Bootstrap =====

// Bootstrap logs in, registers every mower on the account and seeds
// its state: settings, status and, for wireless mowers, map
// artifacts, coverage overlay locations and the robot avatar.
func (s *Sync) Bootstrap(ctx context.Context) error {
	if err := s.client.Login(ctx); err != nil {
		return err
	}

	devices, err := s.client.Devices(ctx)
	if err != nil {
		return fmt.Errorf("cloud: bootstrap: %w", err)
	}

	for _, summary := range devices {
		s.registerDevice(summary)
		if err := s.seedDevice(ctx, summary); err != nil {
			s.logger.Warn("device seed incomplete", "serial", summary.Serial, "error", err)
		}
	}

	s.logger.Debug("bootstrap complete", "devices", len(devices))
	return nil
}

func (s *Sync) registerDevice(summary DeviceSummary) {
	s.mu.Lock()
	s.deviceIDs[summary.Serial] = summary.ID.String()
	s.mu.Unlock()

	s.engine.RegisterDevice(summary.Serial, s.variant, engine.DeviceInfo{
		ID:            summary.ID.String(),
		Model:         summary.Model,
		Name:          summary.Name,
		Bluetooth:     summary.Bluetooth,
		WifiAddress:   summary.IPAddr,
		RobotImageURL: summary.PicURL,
	})
}

func (s *Sync) seedDevice(ctx context.Context, summary DeviceSummary) error {
	serial := summary.Serial

	settings, err := s.client.Settings(ctx, serial, summary.ID.String())
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := s.engine.ApplySettings(serial, settings); err != nil {
		return err
	}

	status, err := s.client.Status(ctx, serial)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if err := s.engine.ApplyStatus(serial, status); err != nil {
		return err
	}

	if s.variant != device.VariantWireless {
		return nil
	}

	if err := s.refreshMap(ctx, serial); err != nil {
		s.logger.Warn("map bootstrap failed", "serial", serial, "error", err)
	}
	if err := s.refreshCoverageURLs(ctx, serial); err != nil {
		s.logger.Warn("coverage url bootstrap failed", "serial", serial, "error", err)
	}
	s.fetchMarker(ctx, serial, summary.PicURL)
	return nil
}

// fetchMarker downloads the robot avatar used as the live map marker.
// Failures fall back to the built-in marker.
func (s *Sync) fetchMarker(ctx context.Context, serial, picURL string) {
	markerURL := s.markerOverride
	if markerURL == "" {
		markerURL = picURL
	}
	if markerURL == "" {
		return
	}
	data, err := s.client.Download(ctx, markerURL)
	if err != nil {
		s.logger.Warn("marker download failed", "serial", serial, "error", err)
		return
	}
	if err := s.engine.ApplyMarker(serial, data); err != nil {
		s.logger.Warn("marker rejected", "serial", serial, "error", err)
	}
}

// ===== Push driven fetches (engine.Syncer) =====

// RequestDeviceRefresh re-polls status and settings for one device.
func (s *Sync) RequestDeviceRefresh(serial string) {
	go s.background("device refresh", serial, s.refreshDevice)
}

// RequestMapData downloads fresh map geometry and path history.
func (s *Sync) RequestMapData(serial string) {
	go s.background("map fetch", serial, s.refreshMap)
}

// RequestHeatMap downloads the mowing coverage overlay.
func (s *Sync) RequestHeatMap(serial string) {
	go s.background("heat map fetch", serial, s.fetchHeatMap)
}

// RequestWifiMap downloads the wifi coverage overlay.
func (s *Sync) RequestWifiMap(serial string) {
	go s.background("wifi map fetch", serial, s.fetchWifiMap)
}

// RequestProperties asks the device to push its full property set.
func (s *Sync) RequestProperties(serial string) {
	go s.background("property request", serial, s.client.RequestAllProperties)
}

// RequestSchedule asks the device to push its schedule.
func (s *Sync) RequestSchedule(serial string) {
	go s.background("schedule request", serial, s.client.RequestScheduleData)
}

func (s *Sync) background(what, serial string, fn func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := fn(ctx, serial); err != nil {
		s.logger.Warn(what+" failed", "serial", serial, "error", err)
	}
}

func (s *Sync) refreshDevice(ctx context.Context, serial string) error {
	status, err := s.client.Status(ctx, serial)
	if err != nil {
		return err
	}
	if err := s.engine.ApplyStatus(serial, status); err != nil {
		return err
	}
	settings, err := s.client.Settings(ctx, serial, s.deviceID(serial))
	if err != nil {
		return err
	}
	return s.engine.ApplySettings(serial, settings)
}

func (s *Sync) refreshMap(ctx context.Context, serial string) error {
	bundle, err := s.client.FetchMapBundle(ctx, serial)
	if err != nil {
		return err
	}
	if len(bundle.Geometry) > 0 {
		if err := s.engine.ApplyMapData(serial, bundle.Geometry); err != nil {
			return err
		}
	}
	if len(bundle.RealPath) > 0 {
		if err := s.engine.ApplyRealPath(serial, bundle.RealPath); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sync) refreshCoverageURLs(ctx context.Context, serial string) error {
	heatURL, wifiURL, err := s.client.FetchCoverageURLs(ctx, serial)
	if err != nil {
		return err
	}
	return s.engine.ApplyCoverageURLs(serial, heatURL, wifiURL)
}

func (s *Sync) fetchHeatMap(ctx context.Context, serial string) error {
	return s.fetchOverlay(ctx, serial,
		func(d *device.Device) string { return d.HeatMapURL },
		s.engine.ApplyHeatMap)
}

func (s *Sync) fetchWifiMap(ctx context.Context, serial string) error {
	return s.fetchOverlay(ctx, serial,
		func(d *device.Device) string { return d.WifiMapURL },
		s.engine.ApplyWifiMap)
}

func (s *Sync) fetchOverlay(ctx context.Context, serial string, urlOf func(*device.Device) string, apply func(string, []byte) error) error {
	snap, err := s.engine.Snapshot(serial)
	if err != nil {
		return err
	}
	overlayURL := urlOf(snap)
	if overlayURL == "" {
		if err := s.refreshCoverageURLs(ctx, serial); err != nil {
			return err
		}
		if snap, err = s.engine.Snapshot(serial); err != nil {
			return err
		}
		overlayURL = urlOf(snap)
	}
	if overlayURL == "" {
		return nil
	}
	data, err := s.client.Download(ctx, overlayURL)
	if err != nil {
		return err
	}
	return apply(serial, data)
}

// ===== Commands =====

// Command runs a cloud command against one device and surfaces the
// outcome: a rejection or transport failure becomes the device error
// text and a change event; success clears the previous error text.
// State-changing commands also arm the deferred re-poll.
func (s *Sync) Command(serial string, repoll bool, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case err == nil:
		s.reportResult(serial, "")
	default:
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			s.reportResult(serial, rejected.Msg)
		} else {
			s.reportResult(serial, err.Error())
		}
	}

	if repoll {
		s.engine.Coordinator().ScheduleOnce(serial, repollKind, s.repollDelay, func() {
			s.RequestDeviceRefresh(serial)
		})
	}
	return err
}

func (s *Sync) reportResult(serial, msg string) {
	if rerr := s.engine.ReportCommandResult(serial, msg); rerr != nil {
		s.logger.Warn("command result not recorded", "serial", serial, "error", rerr)
	}
}

// Start begins mowing, optionally scoped to one zone.
func (s *Sync) Start(serial string, zoneID int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.Start(ctx, serial, zoneID)
	})
}

// Pause suspends the current run.
func (s *Sync) Pause(serial string) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.Pause(ctx, serial)
	})
}

// Dock sends the mower back to the charger.
func (s *Sync) Dock(serial string) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.Dock(ctx, serial)
	})
}

// Stop aborts the current run.
func (s *Sync) Stop(serial string) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.Stop(ctx, serial)
	})
}

// Border starts a border cut.
func (s *Sync) Border(serial string) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.Border(ctx, serial)
	})
}

// SetRain updates the rain sensor settings.
func (s *Sync) SetRain(serial string, enabled bool, delayMin int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetRain(ctx, serial, enabled, delayMin)
	})
}

// SetZones updates the legacy multi-zone percentages and priorities.
func (s *Sync) SetZones(serial string, auto, enabled bool, percents, priorities [4]int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetZones(ctx, serial, auto, enabled, percents, priorities)
	})
}

// SetLegacySchedule replaces the full weekly schedule.
func (s *Sync) SetLegacySchedule(serial string, days []ScheduleDay) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetLegacySchedule(ctx, serial, days)
	})
}

// SetFlexibleSchedule replaces the flexible schedule week.
func (s *Sync) SetFlexibleSchedule(serial string, sched FlexibleSchedule) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetFlexibleSchedule(ctx, serial, sched)
	})
}

// SetScheduleMode switches between off, recommended and custom
// scheduling.
func (s *Sync) SetScheduleMode(serial string, mode int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetScheduleMode(ctx, serial, mode)
	})
}

// SetZoneSettings writes one zone's mowing parameter bundle.
func (s *Sync) SetZoneSettings(serial string, z ZoneSettings) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetZoneSettings(ctx, serial, z)
	})
}

// SetPlanMode sets the cutting pattern and angle.
func (s *Sync) SetPlanMode(serial string, mode, angle int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetPlanMode(ctx, serial, mode, angle)
	})
}

// SetMowEfficiency sets the lane gap and work speed.
func (s *Sync) SetMowEfficiency(serial string, gap, speed int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetMowEfficiency(ctx, serial, gap, speed)
	})
}

// SetBladeSpeed sets the blade rotation speed.
func (s *Sync) SetBladeSpeed(serial string, speed int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetBladeSpeed(ctx, serial, speed)
	})
}

// SetBladeHeight sets the cutting height.
func (s *Sync) SetBladeHeight(serial string, height int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetBladeHeight(ctx, serial, height)
	})
}

// SetBorderFrequency sets how often the mower follows the border.
func (s *Sync) SetBorderFrequency(serial string, freq int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetBorderFrequency(ctx, serial, freq)
	})
}

// SetBorderFirst sets whether a run begins with a border pass.
func (s *Sync) SetBorderFirst(serial string, value bool) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetBorderFirst(ctx, serial, value)
	})
}

// SetTimeWorkRepeat toggles repeated mowing within a time slot.
func (s *Sync) SetTimeWorkRepeat(serial string, value bool) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetTimeWorkRepeat(ctx, serial, value)
	})
}

// SetAISensitivity sets the vision obstacle sensitivity.
func (s *Sync) SetAISensitivity(serial string, value int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetAISensitivity(ctx, serial, value)
	})
}

// SetAvoidObjects sets the obstacle avoidance mode.
func (s *Sync) SetAvoidObjects(serial string, value int) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetAvoidObjects(ctx, serial, value)
	})
}

// SetCustomZonesEnabled toggles per-zone custom settings.
func (s *Sync) SetCustomZonesEnabled(serial string, on bool) error {
	return s.Command(serial, true, func(ctx context.Context) error {
		return s.client.SetCustomZonesEnabled(ctx, serial, on)
	})
}

// ===== Broker wiring =====

// MQTTCredentials resolves the push broker credentials for the
// session.
func (s *Sync) MQTTCredentials(ctx context.Context) (mqtt.Credentials, error) {
	return s.client.MQTTCredentials(ctx)
}

// PushTopic returns the account push topic for the session.
func (s *Sync) PushTopic() string {
	if s.variant == device.VariantWireless {
		return mqtt.WirelessTopic(s.client.UserID())
	}
	return mqtt.AppTopic(s.client.UserID())
}
