// Package schedule implements the two coexisting mowing-schedule models.
//
// Legacy mowers speak a fixed 7-day, single-window-per-day model with
// times delivered as minute offsets. Wireless mowers speak a flexible
// model of up to two windows per weekday, each optionally scoped to a
// zone list, with times as seconds since midnight.
//
// A device carries exactly one Model, selected from its protocol
// variant at construction. The merge engine mutates the model from
// push payloads; the command layer reads it back out through the
// Generate*/EnabledTimeList methods when building wire payloads.
//
// # Wire quirks
//
// The flexible wire list carries no slot numbers. Slot indices are
// reconstructed positionally while iterating: a repeated day value
// continues the previous day's slot sequence, a new day value resets
// it to 1. The border-follow key is transmitted misspelled
// ("need_fllow_boader"); the struct tags preserve it.
package schedule
