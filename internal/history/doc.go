// Package history persists device property updates to SQLite so recent
// changes can be served by the HTTP API after they have left the live
// event stream.
//
// Entries live in the property_events table created by the embedded
// migrations. Timestamps are UTC with millisecond precision.
package history
