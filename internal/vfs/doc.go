// Package vfs implements the unified file-access layer: one opaque handle
// abstraction over real filesystem files and files packed inside library
// containers, a three-tier open resolver (current directory, data directory,
// mounted libraries), case-insensitive path resolution for case-sensitive
// filesystems, and the directory utilities the surrounding application needs.
//
// The model is synchronous and single-threaded per handle: every operation
// blocks until the native I/O completes, and a handle carries mutable cursor
// state with no internal locking. Distinct handles share no mutable state and
// may be used from different goroutines under external coordination.
package vfs
