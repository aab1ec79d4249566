// Package library reads packed library containers, the archive format that
// holds many logical files inside a single on-disk file. A container is an
// opaque read-only key-addressed store: entries are located by logical name,
// read through a cursor owned by the caller, and never written through this
// package.
//
// Lookups are case-insensitive by design. Containers in the wild were
// authored with inconsistent casing, and the access layer above this package
// already folds case for loose files, so the container must behave the same
// way.
//
// Entries are stored raw or deflate-compressed. Compressed entries are
// inflated in full when a cursor is opened, so seeking behaves identically
// for both storage kinds.
package library
