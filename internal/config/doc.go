// Package config establishes the process-wide root paths at startup: the
// per-user configuration folder, the tmp directory the process runs in, and
// the data / tilecache / maps directories discovered under the configured
// data root. The result is an immutable Paths value the caller threads into
// the access layer; nothing in this package is mutated after Load returns.
//
// Failures here are CONFIG_FAILURE errors and abort initialization.
package config
