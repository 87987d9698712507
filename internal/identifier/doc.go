// Package identifier turns human-readable controller names into stable,
// path-safe slugs.
//
// Devices are addressed as "room/name" or "room/category/name" so callers
// never depend on the numeric ids the controller assigns:
//
//	identifier.Join([]string{"Living Room", "Climate", "Temperature"})
//	// "living-room/climate/temperature"
package identifier
