package device

import "errors"

var (
	// ErrDeviceNotFound indicates no device with the given serial is
	// loaded in the store.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrZoneNotFound indicates a zone id that is neither Global nor
	// present in the device's zone list.
	ErrZoneNotFound = errors.New("device: zone not found")
)
