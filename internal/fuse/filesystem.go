package fuse

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	fusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/assetfs/assetfs/internal/vfs"
	"github.com/assetfs/assetfs/pkg/utils"
)

// safeInt64ToUint64 safely converts int64 to uint64, preventing negative values
func safeInt64ToUint64(i int64) uint64 {
	if i < 0 {
		return 0
	}
	return uint64(i)
}

// safeIntToUint32 safely converts int to uint32, preventing overflow
func safeIntToUint32(i int) uint32 {
	if i < 0 {
		return 0
	}
	if i > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(i)
}

// FileSystem bridges the access layer into a FUSE tree.
type FileSystem struct {
	vfs    *vfs.VFS
	config *Config
	stats  *Stats
}

// Config represents FUSE filesystem configuration.
type Config struct {
	MountPoint   string        `yaml:"mount_point"`
	FSName       string        `yaml:"fsname"`
	Debug        bool          `yaml:"debug"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
	EntryTimeout time.Duration `yaml:"entry_timeout"`

	DefaultUID  uint32 `yaml:"default_uid"`
	DefaultGID  uint32 `yaml:"default_gid"`
	DefaultMode uint32 `yaml:"default_mode"`
}

// Stats tracks filesystem operation statistics.
type Stats struct {
	mu sync.RWMutex

	Lookups   int64 `json:"lookups"`
	Opens     int64 `json:"opens"`
	Reads     int64 `json:"reads"`
	BytesRead int64 `json:"bytes_read"`
	Errors    int64 `json:"errors"`
}

// NewFileSystem creates a read-only FUSE bridge over v.
func NewFileSystem(v *vfs.VFS, config *Config) *FileSystem {
	if config == nil {
		config = &Config{
			FSName:       "assetfs",
			AttrTimeout:  time.Second,
			EntryTimeout: time.Second,
			DefaultUID:   safeIntToUint32(os.Getuid()),
			DefaultGID:   safeIntToUint32(os.Getgid()),
			DefaultMode:  0444,
		}
	}
	return &FileSystem{
		vfs:    v,
		config: config,
		stats:  &Stats{},
	}
}

// Root returns the root inode.
func (f *FileSystem) Root() fusefs.InodeEmbedder {
	return &DirectoryNode{fs: f, path: ""}
}

// GetStats returns current filesystem statistics.
func (f *FileSystem) GetStats() Stats {
	f.stats.mu.RLock()
	defer f.stats.mu.RUnlock()
	return Stats{
		Lookups:   f.stats.Lookups,
		Opens:     f.stats.Opens,
		Reads:     f.stats.Reads,
		BytesRead: f.stats.BytesRead,
		Errors:    f.stats.Errors,
	}
}

// entryInfo is the metadata a Lookup resolves before creating a node.
type entryInfo struct {
	isDir   bool
	size    int64
	modTime time.Time
}

// resolve finds name in the unioned namespace: real files under the data
// directory first (the casing the resolver finds is reused), then library
// entries, then library "directories" implied by entry name prefixes.
func (f *FileSystem) resolve(name string) (entryInfo, bool) {
	real := utils.JoinPaths(f.vfs.DataDir(), name)
	fi, err := os.Stat(real)
	if err != nil {
		if resolved, ok := vfs.FindCaseInsensitive(f.vfs.DataDir(), name, true, true); ok {
			fi, err = os.Stat(utils.JoinPaths(f.vfs.DataDir(), resolved))
		}
	}
	if err == nil {
		return entryInfo{isDir: fi.IsDir(), size: fi.Size(), modTime: fi.ModTime()}, true
	}

	mounts := f.vfs.Mounts()
	if mounts == nil {
		return entryInfo{}, false
	}
	if _, e, ok := mounts.Lookup(name); ok {
		return entryInfo{size: int64(e.Size), modTime: e.ModTime}, true
	}

	prefix := strings.ToLower(name) + "/"
	for _, lib := range mounts.Libraries() {
		for _, e := range lib.Entries() {
			lower := strings.ToLower(strings.ReplaceAll(e.Name, "\\", "/"))
			if strings.HasPrefix(lower, prefix) {
				return entryInfo{isDir: true}, true
			}
		}
	}
	return entryInfo{}, false
}

// DirectoryNode represents a directory in the unioned namespace. path is the
// logical name relative to the tree root, "" for the root itself.
type DirectoryNode struct {
	fusefs.Inode
	fs   *FileSystem
	path string
}

var _ fusefs.NodeLookuper = (*DirectoryNode)(nil)
var _ fusefs.NodeReaddirer = (*DirectoryNode)(nil)

// Lookup looks up a child node by name.
func (n *DirectoryNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	n.fs.stats.mu.Lock()
	n.fs.stats.Lookups++
	n.fs.stats.mu.Unlock()

	childPath := n.joinPath(name)
	info, ok := n.fs.resolve(childPath)
	if !ok {
		return nil, syscall.ENOENT
	}

	if info.isDir {
		child := &DirectoryNode{fs: n.fs, path: childPath}
		return n.NewInode(ctx, child, fusefs.StableAttr{Mode: fuse.S_IFDIR}), 0
	}

	child := &FileNode{fs: n.fs, path: childPath, info: info}
	return n.NewInode(ctx, child, fusefs.StableAttr{Mode: fuse.S_IFREG}), 0
}

// Readdir merges the real directory listing with library entries under the
// same logical prefix. Real entries shadow packed ones of the same name,
// mirroring the open resolver's tier order.
func (n *DirectoryNode) Readdir(ctx context.Context) (fusefs.DirStream, syscall.Errno) {
	seen := make(map[string]bool)
	var entries []fuse.DirEntry

	realDir := utils.JoinPaths(n.fs.vfs.DataDir(), n.path)
	if dirents, err := os.ReadDir(realDir); err == nil {
		for _, d := range dirents {
			mode := uint32(fuse.S_IFREG)
			if d.IsDir() {
				mode = fuse.S_IFDIR
			}
			entries = append(entries, fuse.DirEntry{Name: d.Name(), Mode: mode})
			seen[strings.ToLower(d.Name())] = true
		}
	}

	if mounts := n.fs.vfs.Mounts(); mounts != nil {
		prefix := ""
		if n.path != "" {
			prefix = strings.ToLower(n.path) + "/"
		}
		// Lowercasing may change byte lengths for non-ASCII names, so the
		// remainder is cut segment-wise from the original-cased name rather
		// than sliced at the lowered prefix's byte length.
		prefixSegments := strings.Count(prefix, "/")
		for _, lib := range mounts.Libraries() {
			for _, e := range lib.Entries() {
				name := strings.ReplaceAll(e.Name, "\\", "/")
				if !strings.HasPrefix(strings.ToLower(name), prefix) {
					continue
				}
				rest := name
				for i := 0; i < prefixSegments; i++ {
					_, rest = utils.SplitFirst(rest)
				}
				child, remainder := utils.SplitFirst(rest)
				key := strings.ToLower(child)
				if seen[key] {
					continue
				}
				seen[key] = true
				mode := uint32(fuse.S_IFREG)
				if remainder != "" {
					mode = fuse.S_IFDIR
				}
				entries = append(entries, fuse.DirEntry{Name: child, Mode: mode})
			}
		}
	}

	return fusefs.NewListDirStream(entries), 0
}

// Mkdir is refused; the tree is read-only.
func (n *DirectoryNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fusefs.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

// Create is refused; the tree is read-only.
func (n *DirectoryNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fusefs.Inode, fusefs.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

// Unlink is refused; the tree is read-only.
func (n *DirectoryNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

func (n *DirectoryNode) joinPath(name string) string {
	if n.path == "" {
		return name
	}
	return path.Join(n.path, name)
}

// FileNode represents a file served from either backend.
type FileNode struct {
	fusefs.Inode
	fs   *FileSystem
	path string
	info entryInfo
}

var _ fusefs.NodeOpener = (*FileNode)(nil)
var _ fusefs.NodeGetattrer = (*FileNode)(nil)

// Getattr gets file attributes.
func (f *FileNode) Getattr(ctx context.Context, fh fusefs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = f.fs.config.DefaultMode
	out.Size = safeInt64ToUint64(f.info.size)
	out.Uid = f.fs.config.DefaultUID
	out.Gid = f.fs.config.DefaultGID

	unixTime := safeInt64ToUint64(f.info.modTime.Unix())
	out.Mtime = unixTime
	out.Atime = unixTime
	out.Ctime = unixTime
	return 0
}

// Open opens the file through the tiered resolver.
func (f *FileNode) Open(ctx context.Context, flags uint32) (fusefs.FileHandle, uint32, syscall.Errno) {
	f.fs.stats.mu.Lock()
	f.fs.stats.Opens++
	f.fs.stats.mu.Unlock()

	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}

	h, err := f.fs.vfs.OpenForReading(f.path, true)
	if err != nil {
		f.fs.stats.mu.Lock()
		f.fs.stats.Errors++
		f.fs.stats.mu.Unlock()
		return nil, 0, syscall.ENOENT
	}

	return &FileHandle{fs: f.fs, handle: h}, fuse.FOPEN_KEEP_CACHE, 0
}

// FileHandle adapts a sequential access-layer handle to FUSE's offset reads.
// The handle's cursor is unsynchronized by contract, so reads serialize here.
type FileHandle struct {
	fs     *FileSystem
	mu     sync.Mutex
	handle vfs.Handle
}

var _ fusefs.FileReader = (*FileHandle)(nil)
var _ fusefs.FileReleaser = (*FileHandle)(nil)

// Read reads data from the file at the given offset.
func (fh *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	fh.fs.stats.mu.Lock()
	fh.fs.stats.Reads++
	fh.fs.stats.mu.Unlock()

	size, err := fh.handle.Size()
	if err != nil {
		fh.recordError()
		return nil, syscall.EIO
	}
	if off >= size {
		return fuse.ReadResultData(nil), 0
	}
	n := int64(len(dest))
	if off+n > size {
		n = size - off
	}

	if err := fh.handle.Seek(off, vfs.SeekStart); err != nil {
		fh.recordError()
		return nil, syscall.EIO
	}
	if err := fh.handle.Read(dest[:n]); err != nil {
		fh.recordError()
		return nil, syscall.EIO
	}

	fh.fs.stats.mu.Lock()
	fh.fs.stats.BytesRead += n
	fh.fs.stats.mu.Unlock()

	return fuse.ReadResultData(dest[:n]), 0
}

// Write is refused; the tree is read-only.
func (fh *FileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	return 0, syscall.EROFS
}

// Release closes the underlying handle.
func (fh *FileHandle) Release(ctx context.Context) syscall.Errno {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if err := fh.handle.Close(); err != nil {
		fh.recordError()
		return syscall.EIO
	}
	return 0
}

func (fh *FileHandle) recordError() {
	fh.fs.stats.mu.Lock()
	fh.fs.stats.Errors++
	fh.fs.stats.mu.Unlock()
}
