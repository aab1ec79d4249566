package fuse

import (
	"fmt"
	"os"
	"syscall"

	fusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/assetfs/assetfs/pkg/utils"
)

// MountManager manages the FUSE server lifecycle for one mount point.
type MountManager struct {
	filesystem *FileSystem
	server     *fuse.Server
	config     *Config
	log        *utils.Logger
	mounted    bool
}

// NewMountManager creates a mount manager for the given filesystem.
func NewMountManager(filesystem *FileSystem, log *utils.Logger) *MountManager {
	if log == nil {
		log = utils.DefaultLogger()
	}
	return &MountManager{
		filesystem: filesystem,
		config:     filesystem.config,
		log:        log,
	}
}

// Mount mounts the filesystem at the configured mount point and starts
// serving in the background.
func (m *MountManager) Mount() error {
	if m.mounted {
		return fmt.Errorf("filesystem is already mounted")
	}

	if err := m.validateMountPoint(); err != nil {
		return fmt.Errorf("invalid mount point: %w", err)
	}

	server, err := fusefs.Mount(m.config.MountPoint, m.filesystem.Root(), m.buildFUSEOptions())
	if err != nil {
		return fmt.Errorf("failed to mount filesystem: %w", err)
	}

	m.server = server
	m.mounted = true
	m.log.Info("mounted at %s", m.config.MountPoint)

	go func() {
		m.server.Wait()
		m.log.Info("FUSE server stopped")
		m.mounted = false
	}()

	return nil
}

// Unmount unmounts the filesystem, falling back to a forced unmount when the
// kernel refuses the polite one.
func (m *MountManager) Unmount() error {
	if !m.mounted || m.server == nil {
		return fmt.Errorf("filesystem is not mounted")
	}

	if err := m.server.Unmount(); err != nil {
		m.log.Warn("unmount failed, trying force unmount: %v", err)
		if forceErr := m.forceUnmount(); forceErr != nil {
			return fmt.Errorf("unmount failed: %w (force unmount also failed: %v)", err, forceErr)
		}
	}

	m.mounted = false
	m.server = nil
	return nil
}

// IsMounted reports whether the filesystem is currently mounted.
func (m *MountManager) IsMounted() bool {
	return m.mounted
}

// MountPoint returns the configured mount point.
func (m *MountManager) MountPoint() string {
	return m.config.MountPoint
}

// Wait blocks until the FUSE server exits.
func (m *MountManager) Wait() {
	if m.server != nil {
		m.server.Wait()
	}
}

// GetStats returns the filesystem's operation counters.
func (m *MountManager) GetStats() Stats {
	return m.filesystem.GetStats()
}

func (m *MountManager) validateMountPoint() error {
	if m.config.MountPoint == "" {
		return fmt.Errorf("mount point cannot be empty")
	}

	info, err := os.Stat(m.config.MountPoint)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("mount point does not exist: %s", m.config.MountPoint)
		}
		return fmt.Errorf("cannot access mount point: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mount point is not a directory: %s", m.config.MountPoint)
	}

	entries, err := os.ReadDir(m.config.MountPoint)
	if err != nil {
		return fmt.Errorf("cannot read mount point directory: %w", err)
	}
	if len(entries) > 0 {
		m.log.Warn("mount point %s is not empty", m.config.MountPoint)
	}
	return nil
}

func (m *MountManager) buildFUSEOptions() *fusefs.Options {
	opts := &fusefs.Options{
		MountOptions: fuse.MountOptions{
			Name:   m.config.FSName,
			FsName: m.config.FSName,
			Debug:  m.config.Debug,
		},
		AttrTimeout:     &m.config.AttrTimeout,
		EntryTimeout:    &m.config.EntryTimeout,
		NullPermissions: true,
	}

	// The whole tree is read-only; tell the kernel so it can refuse
	// writes before they reach us.
	opts.Options = append(opts.Options, "ro")
	if m.config.FSName != "" {
		opts.Options = append(opts.Options, fmt.Sprintf("fsname=%s", m.config.FSName))
	}
	return opts
}

func (m *MountManager) forceUnmount() error {
	// Lazy unmount first, then force.
	if err := syscall.Unmount(m.config.MountPoint, 2); err == nil {
		return nil
	}
	return syscall.Unmount(m.config.MountPoint, 1)
}
