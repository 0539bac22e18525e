// Package cloud talks to the vendor cloud on behalf of the sync
// engine.
//
// # Client
//
// Client wraps the vendor HTTP API: OAuth password/refresh grants,
// the account device list, settings and status documents, map and
// coverage downloads, and the command endpoints. Responses arrive in
// a common envelope; a non-zero code is a recoverable StatusError and
// ok=false on a command is a RejectedError. A 401 schedules a
// one-shot token refresh, replacing any pending one.
//
// Two protocol generations share the client. The legacy variant uses
// the original endpoints and flat command bodies; the wireless
// variant uses per-region clusters, action verbs and the generic
// property endpoint.
//
// # Sync
//
// Sync implements engine.Syncer: the fetches the engine flags during
// push processing run here on background goroutines and feed results
// back through the engine's Apply methods. Bootstrap performs the
// initial account walk (login, register, seed settings/status/map).
// Command wrappers surface rejections as device error text and arm
// the deferred re-poll that picks up the settled state.
package cloud
