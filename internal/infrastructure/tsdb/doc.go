// Package tsdb provides InfluxDB connectivity for Sunseeker Core.
//
// It wraps the official influxdb-client-go v2 library with patterns for
// connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for mower telemetry:
//   - Battery level, signal strength, rain sensor
//   - Position and orientation samples
//   - Operating mode over time
//
// # Usage
//
//	client, err := tsdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSnapshot("SN123", tsdb.Snapshot{Battery: 87, Mode: "working"})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// SetOnError. Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval). Telemetry is optional; when disabled in config,
// Connect returns ErrDisabled and the caller runs without it.
package tsdb
