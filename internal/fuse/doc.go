// Package fuse exposes the unified access layer as a read-only FUSE
// filesystem. The mounted tree is the data directory unioned with the
// namespaces of all mounted library containers, so tools that know nothing
// about containers can browse packed assets as ordinary files. Every
// mutating operation returns EROFS.
package fuse
