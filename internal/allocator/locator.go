package allocator

import "github.com/nerrad567/gray-logic-installer/internal/hardware"

// Locate finds the port and slot a device is wired into.
// The search walks ports in snapshot order and returns the first match.
func Locate(snap *hardware.Snapshot, deviceID string) (hardware.Placement, bool) {
	if snap == nil || deviceID == "" {
		return hardware.Placement{}, false
	}

	for _, port := range snap.Menu() {
		for _, dev := range port.Devices {
			if dev.ID != deviceID {
				continue
			}
			return hardware.Placement{
				DeviceID:  deviceID,
				CentralID: snap.CentralID,
				Direction: snap.Direction,
				Port:      port.Port,
				Slot:      dev.Sequence,
			}, true
		}
	}
	return hardware.Placement{}, false
}

// LocatePort returns the index of the port holding the device.
func LocatePort(snap *hardware.Snapshot, deviceID string) (int, bool) {
	p, ok := Locate(snap, deviceID)
	return p.Port, ok
}

// LocateSequence returns the slot index the device occupies within its port.
func LocateSequence(snap *hardware.Snapshot, deviceID string) (int, bool) {
	p, ok := Locate(snap, deviceID)
	return p.Slot, ok
}
