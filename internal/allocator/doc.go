// Package allocator answers the two placement questions asked when wiring
// devices into a central.
//
// The Capacity Scanner (Scan) reports, per port, whether there is free key
// capacity and which sequence slot is the next free one. The Placement
// Locator (Locate, LocatePort, LocateSequence) reports where an existing
// device is wired. Both are pure functions over a hardware.Snapshot.
//
// Service wraps the pure functions with snapshot fetching:
//
//	svc, err := allocator.NewService(allocator.Options{
//	    Provider: provider,
//	    Cache:    allocator.NewMemoryCache(30 * time.Second),
//	    Logger:   log,
//	})
//	ports, err := svc.Scan(ctx, "central-1", hardware.DirectionInput)
//
// # Capacity policy
//
// INPUT ports are partitionable: free key units can be shared by several
// devices. OUTPUT ports are all-or-nothing: a single claimed unit makes the
// whole port unavailable. See KeysAvailable.
//
// # Consistency
//
// Snapshots are cached per (central, direction) and invalidated when a
// placement is committed (CommitListener) or on demand (Service.Invalidate).
// A fetch that began before an invalidation never repopulates the cache.
// Results are eventually refreshed; two operators looking at the same
// central may briefly see different availability.
package allocator
