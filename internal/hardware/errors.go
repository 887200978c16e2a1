package hardware

import "errors"

// Domain errors for the hardware package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, hardware.ErrNotFound) {
//	    // central or device absent: not yet placed
//	}
var (
	// ErrNotFound is returned when a central is absent from the provider.
	ErrNotFound = errors.New("hardware: not found")

	// ErrMalformedSnapshot is returned when a snapshot document cannot be decoded.
	ErrMalformedSnapshot = errors.New("hardware: malformed snapshot")

	// ErrTransportFailure is returned when the snapshot fetch itself fails.
	ErrTransportFailure = errors.New("hardware: transport failure")

	// ErrInvalidDirection is returned when a direction value is not recognised.
	ErrInvalidDirection = errors.New("hardware: invalid direction")

	// ErrInvalidPort is returned when a port index is negative or duplicated.
	ErrInvalidPort = errors.New("hardware: invalid port")

	// ErrSlotOutOfRange is returned when a slot index is outside 0..SequenceLimit-1.
	ErrSlotOutOfRange = errors.New("hardware: slot index out of range")

	// ErrNonContiguousSlots is returned when an occupied slot follows a free one.
	ErrNonContiguousSlots = errors.New("hardware: slots not contiguous")

	// ErrKeysOverLimit is returned when more key units are claimed than the port hosts.
	ErrKeysOverLimit = errors.New("hardware: keys occupied exceed limit")

	// ErrDuplicatePlacement is returned when a device occupies more than one slot.
	ErrDuplicatePlacement = errors.New("hardware: device placed more than once")
)
