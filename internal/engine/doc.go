// Package engine merges vendor push messages into device state and
// drives everything that follows from a change: map renders, cloud
// fetches, deferred repolls, observer events, history and telemetry.
//
// # Merge model
//
// Push payloads are partial and mix two wire generations. Every field
// merge goes through change-tracking setters: a value is coerced,
// compared and only assigned when it differs, so a duplicate push
// produces no event, no history row and no telemetry point. Position
// samples are the exception; they overwrite silently because their
// consumer is the live composite, not observers.
//
// # Serialization
//
// All device mutation runs under a per-serial lock owned by the
// Coordinator. The push path, poll application and API snapshots all
// funnel through it, which is the only concurrency control the device
// model needs.
//
// # Deferred work
//
// A fault-code change arms a single deferred refresh per device
// (fault detail only exists in the HTTP API); re-arming replaces the
// pending timer rather than stacking. Cloud downloads requested by a
// merge go through the Syncer interface and must not block the merge
// path.
//
// # Events
//
// Subscribers attach through the Bus and receive a ChangeSet per
// effective message. Publishing never blocks; a slow subscriber loses
// events instead of stalling ingestion.
package engine
