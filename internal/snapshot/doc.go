// Package snapshot provides the hardware snapshot sources the allocator
// reads from.
//
// Three providers implement allocator.Provider:
//
//   - HTTPProvider fetches from the backend REST API, in either the index
//     shape (indexGlobalKeys bitmap) or the denormalized menu shape.
//   - FileProvider serves a YAML, TOML or JSON fixture, re-reading the file
//     on every fetch so edits show up without a restart.
//   - SQLiteProvider reads the local replica maintained by Import.
//
// Every provider reports a missing central as hardware.ErrNotFound and any
// failure to reach its source as hardware.ErrTransportFailure.
package snapshot
