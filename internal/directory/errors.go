package directory

import "errors"

// Domain errors for the directory package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, directory.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when an identifier or id does not
	// resolve to a device, even after a refresh.
	ErrDeviceNotFound = errors.New("directory: device not found")

	// ErrRoomNotFound is returned when a room id or identifier is unknown.
	ErrRoomNotFound = errors.New("directory: room not found")

	// ErrActionNotSupported is returned when a device does not advertise
	// the requested action.
	ErrActionNotSupported = errors.New("directory: action not supported by device")
)
