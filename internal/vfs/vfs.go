package vfs

import (
	"os"
	"runtime"

	"github.com/assetfs/assetfs/internal/library"
	"github.com/assetfs/assetfs/internal/metrics"
	"github.com/assetfs/assetfs/pkg/errors"
	"github.com/assetfs/assetfs/pkg/utils"
)

// Search tier labels, used for logging and metrics.
const (
	TierCurrent = "current"
	TierData    = "data"
	TierLibrary = "library"
)

// Backend labels.
const (
	BackendReal    = "real"
	BackendLibrary = "library"
)

// Options configures a VFS. The root paths are fixed for the lifetime of
// the VFS; the surrounding application builds them once at startup.
type Options struct {
	// DataDir is the data directory searched in tier 2.
	DataDir string

	// CaseSensitive declares whether the underlying filesystem folds case
	// natively. When true, tier-2 misses are retried through the
	// case-insensitive resolver.
	CaseSensitive bool

	// Mounts is the set of library containers searched in tier 3. May be
	// nil when no containers are mounted.
	Mounts *library.Mounts

	// Logger receives resolution diagnostics. Defaults to an INFO logger
	// on stderr.
	Logger *utils.Logger

	// Metrics receives operation metrics. May be nil.
	Metrics *metrics.Collector
}

// PlatformCaseSensitive returns the case-sensitivity default for the host:
// Windows and macOS fold case natively, the other Unix filesystems do not.
func PlatformCaseSensitive() bool {
	return runtime.GOOS != "windows" && runtime.GOOS != "darwin"
}

// VFS is the unified access layer over loose files and library containers.
type VFS struct {
	dataDir       string
	caseSensitive bool
	mounts        *library.Mounts
	log           *utils.Logger
	metrics       *metrics.Collector
}

// New creates a VFS from options.
func New(opts Options) *VFS {
	log := opts.Logger
	if log == nil {
		log = utils.DefaultLogger()
	}
	return &VFS{
		dataDir:       opts.DataDir,
		caseSensitive: opts.CaseSensitive,
		mounts:        opts.Mounts,
		log:           log,
		metrics:       opts.Metrics,
	}
}

// DataDir returns the tier-2 data directory.
func (v *VFS) DataDir() string {
	return v.dataDir
}

// Mounts returns the tier-3 container set, possibly nil.
func (v *VFS) Mounts() *library.Mounts {
	return v.mounts
}

// OpenForReading opens name with Read intent. The search walks up to three
// tiers: the current directory (name may also be absolute), then, when
// fallback is true, the data directory (with case-insensitive retry on
// case-sensitive filesystems), then the mounted library containers where
// the first container holding the name wins. Tier misses are silent; only
// exhaustion of every tier surfaces NOT_FOUND.
func (v *VFS) OpenForReading(name string, fallback bool) (Handle, error) {
	flags := OpenFlags(IntentRead)

	if f, err := os.OpenFile(name, flags, 0); err == nil {
		v.log.Debug("opened file (current dir): %s", name)
		v.metrics.RecordOpen(TierCurrent, BackendReal)
		return newRealHandle(f, name, IntentRead, v.metrics), nil
	}

	if fallback {
		if f, path, ok := v.openInDataDir(name, flags); ok {
			v.log.Debug("opened file (data dir): %s", path)
			v.metrics.RecordOpen(TierData, BackendReal)
			return newRealHandle(f, path, IntentRead, v.metrics), nil
		}

		if v.mounts != nil {
			r, err := v.mounts.Open(name)
			if err == nil {
				v.log.Debug("opened file (library): %s", name)
				v.metrics.RecordOpen(TierLibrary, BackendLibrary)
				return newLibraryHandle(r, name, v.metrics), nil
			}
			// An entry that exists but cannot be opened is an I/O
			// failure, not a resolution miss.
			if !errors.IsNotFound(err) {
				v.metrics.RecordError("open")
				return nil, err
			}
		}
	}

	v.metrics.RecordMiss()
	return nil, errors.NotFound(name)
}

// openInDataDir attempts a tier-2 open, retrying through the
// case-insensitive resolver when the filesystem does not fold case.
func (v *VFS) openInDataDir(name string, flags int) (*os.File, string, bool) {
	path := utils.JoinPaths(v.dataDir, name)
	f, err := os.OpenFile(path, flags, 0)
	if err == nil {
		return f, path, true
	}

	if v.caseSensitive {
		if resolved, ok := findCaseInsensitive(v.dataDir, name, true, false, v.log); ok {
			path = utils.JoinPaths(v.dataDir, resolved)
			if f, err = os.OpenFile(path, flags, 0); err == nil {
				return f, path, true
			}
		}
	}
	return nil, "", false
}

// OpenForWriting opens path with Write intent. A missing file is created;
// an existing file is truncated. Writes always name an explicit location:
// no tier search happens and writing into a library is never attempted.
func (v *VFS) OpenForWriting(path string) (Handle, error) {
	return v.openReal(path, IntentWrite)
}

// OpenForAppend opens path with Append intent, creating the file if absent.
func (v *VFS) OpenForAppend(path string) (Handle, error) {
	return v.openReal(path, IntentAppend)
}

// OpenForReadWrite opens path with ReadWrite intent, creating the file if
// absent.
func (v *VFS) OpenForReadWrite(path string) (Handle, error) {
	return v.openReal(path, IntentReadWrite)
}

func (v *VFS) openReal(path string, intent AccessIntent) (Handle, error) {
	f, err := os.OpenFile(path, OpenFlags(intent), 0600)
	if err != nil {
		return nil, errors.IOFailure("open", path, err)
	}
	v.metrics.RecordOpen(TierCurrent, BackendReal)
	return newRealHandle(f, path, intent, v.metrics), nil
}

// Exists reports whether name resolves in any of the three tiers, without
// producing a handle.
func (v *VFS) Exists(name string) bool {
	if _, err := os.Stat(name); err == nil {
		return true
	}
	if _, err := os.Stat(utils.JoinPaths(v.dataDir, name)); err == nil {
		return true
	}
	if v.caseSensitive {
		if _, ok := findCaseInsensitive(v.dataDir, name, true, false, v.log); ok {
			return true
		}
	}
	return v.mounts != nil && v.mounts.Contains(name)
}
