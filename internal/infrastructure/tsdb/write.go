package tsdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Snapshot is the telemetry extracted from one processed update.
//
// Mode is the decoded state name, not the raw wire code.
type Snapshot struct {
	Battery     int
	Mode        string
	RainStatus  int
	Signal      int
	X           float64
	Y           float64
	Orientation int
}

// WriteSnapshot writes one telemetry point for a mower.
//
// The write is non-blocking; data is batched and sent asynchronously.
// One point is written per processed cloud update, tagged by serial.
//
// Parameters:
//   - serial: Mower serial number
//   - snap: Telemetry values from the update
//
// Example:
//
//	client.WriteSnapshot("SN123", tsdb.Snapshot{Battery: 87, Mode: "working"})
func (c *Client) WriteSnapshot(serial string, snap Snapshot) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"mower_state",
		map[string]string{
			"serial": serial,
			"mode":   snap.Mode,
		},
		map[string]interface{}{
			"battery":     snap.Battery,
			"rain_status": snap.RainStatus,
			"signal":      snap.Signal,
			"x":           snap.X,
			"y":           snap.Y,
			"orientation": snap.Orientation,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteSnapshot.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
