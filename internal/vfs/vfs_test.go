package vfs

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetfs/assetfs/internal/library"
	"github.com/assetfs/assetfs/pkg/errors"
	"github.com/assetfs/assetfs/pkg/utils"
)

type testEntry struct {
	name string
	data []byte
}

// writeTestLibrary packs raw entries into a container file for the reader.
func writeTestLibrary(t *testing.T, path string, files []testEntry) {
	t.Helper()

	tableSize := 0
	for _, f := range files {
		tableSize += 28 + len(f.name)
	}

	var out bytes.Buffer
	out.WriteString(library.Magic)
	binary.Write(&out, binary.LittleEndian, uint16(library.FormatVersion))
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint32(len(files)))

	offset := int64(12 + tableSize)
	for _, f := range files {
		binary.Write(&out, binary.LittleEndian, uint16(len(f.name)))
		out.WriteString(f.name)
		binary.Write(&out, binary.LittleEndian, uint64(offset))
		binary.Write(&out, binary.LittleEndian, uint32(len(f.data)))
		binary.Write(&out, binary.LittleEndian, uint32(len(f.data)))
		binary.Write(&out, binary.LittleEndian, uint16(0))
		binary.Write(&out, binary.LittleEndian, time.Unix(1_000_000_000, 0).Unix())
		offset += int64(len(f.data))
	}
	for _, f := range files {
		out.Write(f.data)
	}

	require.NoError(t, os.WriteFile(path, out.Bytes(), 0644))
}

// newTestVFS builds a VFS over a fresh data directory and optional libraries.
func newTestVFS(t *testing.T, libFiles []testEntry) (*VFS, string) {
	t.Helper()
	dataDir := t.TempDir()

	var mounts *library.Mounts
	if libFiles != nil {
		libPath := filepath.Join(dataDir, "assets.slf")
		writeTestLibrary(t, libPath, libFiles)
		mounts = library.NewMounts()
		require.NoError(t, mounts.MountDir(dataDir, "*.slf"))
		t.Cleanup(func() { mounts.Close() })
	}

	v := New(Options{
		DataDir:       dataDir,
		CaseSensitive: true,
		Mounts:        mounts,
		Logger:        utils.NewLogger(utils.ERROR, os.Stderr),
	})
	return v, dataDir
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

// TestOpenForReadingCurrentDir verifies tier 1 serves cwd-relative names
func TestOpenForReadingCurrentDir(t *testing.T) {
	v, _ := newTestVFS(t, nil)
	cwd := t.TempDir()
	chdir(t, cwd)
	require.NoError(t, os.WriteFile(filepath.Join(cwd, "local.dat"), []byte("local"), 0644))

	h, err := v.OpenForReading("local.dat", true)
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, 5)
	require.NoError(t, h.Read(buf))
	assert.Equal(t, "local", string(buf))
}

// TestOpenForReadingDataDirFallback verifies tier 2 and handle operations
func TestOpenForReadingDataDirFallback(t *testing.T) {
	v, dataDir := newTestVFS(t, nil)
	chdir(t, t.TempDir())
	content := []byte("0123456789")
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "numbers.dat"), content, 0644))

	h, err := v.OpenForReading("numbers.dat", true)
	require.NoError(t, err)
	defer h.Close()

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)

	buf := make([]byte, 4)
	require.NoError(t, h.Read(buf))
	assert.Equal(t, "0123", string(buf))
	assert.Equal(t, int64(4), h.Position())

	require.NoError(t, h.Seek(-2, SeekEnd))
	require.NoError(t, h.Read(buf[:2]))
	assert.Equal(t, "89", string(buf[:2]))

	require.NoError(t, h.Seek(0, SeekStart))
	assert.Equal(t, int64(0), h.Position())
}

// TestOpenForReadingCaseFolded verifies tier 2 retries with case folding
func TestOpenForReadingCaseFolded(t *testing.T) {
	v, dataDir := newTestVFS(t, nil)
	chdir(t, t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "Maps"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "Maps", "A9.dat"), []byte("map"), 0644))

	h, err := v.OpenForReading("maps/a9.dat", true)
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, 3)
	require.NoError(t, h.Read(buf))
	assert.Equal(t, "map", string(buf))
}

// TestOpenForReadingFromLibrary verifies tier 3 and the read-only capability
func TestOpenForReadingFromLibrary(t *testing.T) {
	content := []byte("packed bytes")
	v, _ := newTestVFS(t, []testEntry{{name: "gfx/logo.sti", data: content}})
	chdir(t, t.TempDir())

	h, err := v.OpenForReading("gfx/logo.sti", true)
	require.NoError(t, err)
	defer h.Close()

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size, "size must equal the recorded entry length")

	err = h.Write([]byte("nope"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidOperation(err), "library handles forbid write")

	buf := make([]byte, len(content))
	require.NoError(t, h.Read(buf))
	assert.Equal(t, content, buf)

	require.NoError(t, h.Seek(0, SeekStart))
	require.NoError(t, h.Read(buf[:6]))
	assert.Equal(t, "packed", string(buf[:6]))

	mt, err := h.ModTime()
	require.NoError(t, err)
	assert.False(t, mt.IsZero())
}

// TestOpenForReadingNotFound verifies exhaustion of all tiers
func TestOpenForReadingNotFound(t *testing.T) {
	v, _ := newTestVFS(t, []testEntry{{name: "present.dat", data: []byte("x")}})
	chdir(t, t.TempDir())

	h, err := v.OpenForReading("absent-everywhere.dat", true)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Nil(t, h, "no handle may be allocated on a miss")
}

// TestOpenForReadingNoFallback verifies tiers 2-3 are skipped without fallback
func TestOpenForReadingNoFallback(t *testing.T) {
	v, dataDir := newTestVFS(t, nil)
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "deep.dat"), []byte("x"), 0644))

	_, err := v.OpenForReading("deep.dat", false)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

// TestWriteThroughReadIntent verifies the capability check fires before I/O
func TestWriteThroughReadIntent(t *testing.T) {
	v, dataDir := newTestVFS(t, nil)
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "ro.dat"), []byte("x"), 0644))

	h, err := v.OpenForReading("ro.dat", true)
	require.NoError(t, err)
	defer h.Close()

	err = h.Write([]byte("y"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalidOperation(err))
}

// TestOpenForWriting verifies create-or-truncate write semantics
func TestOpenForWriting(t *testing.T) {
	v, _ := newTestVFS(t, nil)
	path := filepath.Join(t.TempDir(), "save.dat")

	h, err := v.OpenForWriting(path)
	require.NoError(t, err)
	require.NoError(t, h.Write([]byte("first version, long")))
	require.NoError(t, h.Close())

	h, err = v.OpenForWriting(path)
	require.NoError(t, err)
	require.NoError(t, h.Write([]byte("short")))
	require.NoError(t, h.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(data), "second open must truncate")
}

// TestOpenForAppend verifies append accumulates
func TestOpenForAppend(t *testing.T) {
	v, _ := newTestVFS(t, nil)
	path := filepath.Join(t.TempDir(), "log.txt")

	for _, chunk := range []string{"one ", "two"} {
		h, err := v.OpenForAppend(path)
		require.NoError(t, err)
		require.NoError(t, h.Write([]byte(chunk)))
		require.NoError(t, h.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one two", string(data))
}

// TestOpenForReadWrite verifies both capabilities on one handle
func TestOpenForReadWrite(t *testing.T) {
	v, _ := newTestVFS(t, nil)
	path := filepath.Join(t.TempDir(), "rw.dat")

	h, err := v.OpenForReadWrite(path)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Write([]byte("abcdef")))
	require.NoError(t, h.Seek(0, SeekStart))

	buf := make([]byte, 6)
	require.NoError(t, h.Read(buf))
	assert.Equal(t, "abcdef", string(buf))
}

// TestExists verifies existence checks across all three tiers
func TestExists(t *testing.T) {
	v, dataDir := newTestVFS(t, []testEntry{{name: "inlib.dat", data: []byte("x")}})
	cwd := t.TempDir()
	chdir(t, cwd)

	require.NoError(t, os.WriteFile(filepath.Join(cwd, "incwd.dat"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "InData.dat"), []byte("x"), 0644))

	assert.True(t, v.Exists("incwd.dat"), "tier 1")
	assert.True(t, v.Exists("indata.dat"), "tier 2 with case folding")
	assert.True(t, v.Exists("INLIB.DAT"), "tier 3, container lookup folds case")
	assert.False(t, v.Exists("nowhere.dat"))
}

// TestOpenForReadingCorruptLibraryEntry verifies that an entry which resolves
// in tier 3 but cannot be opened surfaces IO_FAILURE, not NOT_FOUND
func TestOpenForReadingCorruptLibraryEntry(t *testing.T) {
	dataDir := t.TempDir()
	name := "gfx/borked.sti"

	// A deflate-flagged entry whose stored bytes are not a valid stream.
	stored := []byte("this is not a deflate stream")
	var out bytes.Buffer
	out.WriteString(library.Magic)
	binary.Write(&out, binary.LittleEndian, uint16(library.FormatVersion))
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint32(1))
	binary.Write(&out, binary.LittleEndian, uint16(len(name)))
	out.WriteString(name)
	binary.Write(&out, binary.LittleEndian, uint64(12+28+len(name)))
	binary.Write(&out, binary.LittleEndian, uint32(len(stored)))
	binary.Write(&out, binary.LittleEndian, uint32(64))
	binary.Write(&out, binary.LittleEndian, uint16(library.FlagDeflate))
	binary.Write(&out, binary.LittleEndian, int64(1_000_000_000))
	out.Write(stored)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "assets.slf"), out.Bytes(), 0644))

	mounts := library.NewMounts()
	require.NoError(t, mounts.MountDir(dataDir, "*.slf"))
	t.Cleanup(func() { mounts.Close() })

	v := New(Options{
		DataDir:       dataDir,
		CaseSensitive: true,
		Mounts:        mounts,
		Logger:        utils.NewLogger(utils.ERROR, os.Stderr),
	})
	chdir(t, t.TempDir())

	h, err := v.OpenForReading(name, true)
	require.Error(t, err)
	assert.True(t, errors.IsIOFailure(err), "a found but unreadable entry is an I/O failure")
	assert.False(t, errors.IsNotFound(err))
	assert.Nil(t, h)
}

// TestReadShortFailsAsIOFailure verifies exact-fill read semantics
func TestReadShortFailsAsIOFailure(t *testing.T) {
	v, dataDir := newTestVFS(t, nil)
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "tiny.dat"), []byte("abc"), 0644))

	h, err := v.OpenForReading("tiny.dat", true)
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, 16)
	err = h.Read(buf)
	require.Error(t, err, "reading 16 bytes from a 3-byte file must fail")
	assert.True(t, errors.IsIOFailure(err))
}
