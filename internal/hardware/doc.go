// Package hardware holds the canonical in-memory model of a central's port
// occupancy.
//
// A Central exposes two independent port pools (input and output). Each Port
// has a fixed key capacity and a four-position sequence of slots that must be
// filled contiguously from index 0. A Snapshot is one direction of one central
// as read from a snapshot provider at a point in time.
//
// # Views
//
// Two differently shaped upstream documents describe the same hardware state:
//
//   - the index document (DecodeIndex): per-port key bitmaps and slot
//     occupancy keyed under indexGlobalKeys
//   - the menu document (DecodeMenu): a denormalized tree listing the devices
//     wired into each port
//
// Both decode into Central. Snapshot.Menu derives the device-list view back
// from the canonical model, so the two views can never disagree.
//
// # Leniency
//
// Decoding never fails because of a single bad port. Ports whose occupancy
// cannot be read, or that break an invariant, are flagged Malformed and
// carry a Fault describing why. Only an undecodable top-level document is an
// error (ErrMalformedSnapshot).
//
// # Thread Safety
//
// Types in this package are plain values. Snapshot.DeepCopy must be used
// before sharing a snapshot between goroutines that may modify it.
package hardware
