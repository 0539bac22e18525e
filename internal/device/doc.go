// Package device holds the canonical in-memory model of each mower
// and its persistent transition history.
//
// # Model
//
// A Device is a flat record of everything known about one mower:
// identity, telemetry, settings, schedule, zones, map geometry bounds
// and rendered artifacts. It carries no behavior beyond lookups and
// copying; the merge engine owns all mutation, and the coordinator
// serializes it per serial number.
//
// # Variants
//
// Two protocol generations exist and never mix on one device. The
// variant is fixed at creation and selects the schedule model (legacy
// 7-day grid or flexible 14-slot table), the mode-name mapping, and
// which push payload shapes the engine accepts.
//
// # Snapshots
//
// DeepCopy produces isolated snapshots for API responses and
// observers. Rendered images are shared between copies because the
// renderer replaces them wholesale rather than drawing in place.
//
// # History
//
// HistoryRepository persists field-level transitions to SQLite so
// mode and fault timelines survive restarts. Entries are pruned by
// age, not count.
package device
