// Package progress defines the observer contract used to surface
// query activity (start, byte counts, end) to a consumer such as a
// progress dialog, and provides a slog-backed implementation.
//
// A Meter is injected at client construction; a nil Meter disables
// all notifications without error.
package progress
