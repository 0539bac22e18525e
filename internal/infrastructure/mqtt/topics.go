package mqtt

import "fmt"

// Topic endpoints used by the Sunseeker cloud broker.
//
// The broker pushes device state to a per-account topic. Legacy
// mowers and wireless mowers use separate endpoints (and separate
// brokers), but the topic shape is the same:
//
//	/{endpoint}/{user_id}/get
const (
	// endpointApp is the push endpoint for legacy mowers.
	endpointApp = "app"

	// endpointWireless is the push endpoint for wireless mowers.
	endpointWireless = "wirelessdevice"
)

// AppTopic returns the push topic for legacy mowers belonging to the
// given account.
//
// Example: /app/182931/get
func AppTopic(userID int64) string {
	return fmt.Sprintf("/%s/%d/get", endpointApp, userID)
}

// WirelessTopic returns the push topic for wireless mowers belonging
// to the given account.
//
// Example: /wirelessdevice/182931/get
func WirelessTopic(userID int64) string {
	return fmt.Sprintf("/%s/%d/get", endpointWireless, userID)
}
