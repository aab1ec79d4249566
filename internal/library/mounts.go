package library

import (
	"path/filepath"
	"sort"

	"github.com/assetfs/assetfs/pkg/errors"
	"github.com/assetfs/assetfs/pkg/utils"
)

// Mounts holds the set of open containers in mount order. Name lookups walk
// the set in that order and the first container reporting a match wins;
// container sets are expected to be disjoint by content, so no further
// tie-break is needed.
type Mounts struct {
	libs []*Library
}

// NewMounts returns an empty mount set.
func NewMounts() *Mounts {
	return &Mounts{}
}

// Mount appends an open container to the set.
func (m *Mounts) Mount(lib *Library) {
	m.libs = append(m.libs, lib)
}

// MountDir opens every container in dir matching pattern (a glob over base
// names, e.g. "*.slf") and mounts them in sorted name order so enumeration
// stays deterministic across platforms.
func (m *Mounts) MountDir(dir, pattern string) error {
	find, err := utils.NewFindFiles(filepath.Join(dir, pattern))
	if err != nil {
		return errors.IOFailure("mount", dir, err)
	}

	var names []string
	for {
		name, ok := find.Next()
		if !ok {
			break
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lib, err := Open(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		m.Mount(lib)
	}
	return nil
}

// Libraries returns the mounted containers in mount order.
func (m *Mounts) Libraries() []*Library {
	return m.libs
}

// Lookup finds the first mounted container holding name.
func (m *Mounts) Lookup(name string) (*Library, *Entry, bool) {
	for _, lib := range m.libs {
		if e, ok := lib.Lookup(name); ok {
			return lib, e, true
		}
	}
	return nil, nil, false
}

// Contains reports whether any mounted container holds name.
func (m *Mounts) Contains(name string) bool {
	_, _, ok := m.Lookup(name)
	return ok
}

// Open opens a cursor over the first match for name across the mount set.
func (m *Mounts) Open(name string) (*EntryReader, error) {
	lib, e, ok := m.Lookup(name)
	if !ok {
		return nil, errors.NotFound(name)
	}
	return lib.OpenEntry(e)
}

// Close closes every mounted container. The first failure is returned but
// the remaining containers are still closed.
func (m *Mounts) Close() error {
	var first error
	for _, lib := range m.libs {
		if err := lib.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.libs = nil
	return first
}
