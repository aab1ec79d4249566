package library

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetfs/assetfs/pkg/errors"
)

// fixtureFile describes one entry to pack into a test container.
type fixtureFile struct {
	name     string
	data     []byte
	compress bool
	modTime  time.Time
}

// writeLibrary builds a container on disk in the format Open expects.
func writeLibrary(t *testing.T, path string, files []fixtureFile) {
	t.Helper()

	type packed struct {
		fixtureFile
		stored []byte
	}
	entries := make([]packed, len(files))
	tableSize := 0
	for i, f := range files {
		entries[i].fixtureFile = f
		entries[i].stored = f.data
		if f.compress {
			var buf bytes.Buffer
			w, err := flate.NewWriter(&buf, flate.DefaultCompression)
			require.NoError(t, err)
			_, err = w.Write(f.data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			entries[i].stored = buf.Bytes()
		}
		tableSize += 2 + len(f.name) + 8 + 4 + 4 + 2 + 8
	}

	var out bytes.Buffer
	out.WriteString(Magic)
	binary.Write(&out, binary.LittleEndian, uint16(FormatVersion))
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint32(len(files)))

	offset := int64(12 + tableSize)
	for _, e := range entries {
		binary.Write(&out, binary.LittleEndian, uint16(len(e.name)))
		out.WriteString(e.name)
		binary.Write(&out, binary.LittleEndian, uint64(offset))
		binary.Write(&out, binary.LittleEndian, uint32(len(e.stored)))
		binary.Write(&out, binary.LittleEndian, uint32(len(e.data)))
		var flags uint16
		if e.compress {
			flags |= FlagDeflate
		}
		binary.Write(&out, binary.LittleEndian, flags)
		mt := e.modTime
		if mt.IsZero() {
			mt = time.Unix(1_000_000_000, 0)
		}
		binary.Write(&out, binary.LittleEndian, mt.Unix())
		offset += int64(len(e.stored))
	}
	for _, e := range entries {
		out.Write(e.stored)
	}

	require.NoError(t, os.WriteFile(path, out.Bytes(), 0644))
}

func openFixture(t *testing.T, files []fixtureFile) *Library {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.slf")
	writeLibrary(t, path, files)
	lib, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return lib
}

// TestOpenRejectsBadMagic verifies corrupt containers fail as IO failures
func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.slf")
	require.NoError(t, os.WriteFile(path, []byte("not a library at all"), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.True(t, errors.IsIOFailure(err))
}

// TestLookupIsCaseInsensitive verifies entry lookup folds case and separators
func TestLookupIsCaseInsensitive(t *testing.T) {
	lib := openFixture(t, []fixtureFile{
		{name: "Maps/A9.dat", data: []byte("terrain")},
	})

	for _, query := range []string{"Maps/A9.dat", "maps/a9.dat", "MAPS/A9.DAT", "maps\\a9.dat"} {
		e, ok := lib.Lookup(query)
		require.True(t, ok, "lookup %q", query)
		assert.Equal(t, "Maps/A9.dat", e.Name)
	}

	_, ok := lib.Lookup("maps/a10.dat")
	assert.False(t, ok)
}

// TestEntryReadSeek verifies cursor reads and all three seek origins
func TestEntryReadSeek(t *testing.T) {
	content := []byte("0123456789abcdef")
	lib := openFixture(t, []fixtureFile{
		{name: "blob.bin", data: content},
	})

	e, ok := lib.Lookup("blob.bin")
	require.True(t, ok)
	r, err := lib.OpenEntry(e)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 4)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf))
	assert.Equal(t, int64(4), r.Position())

	_, err = r.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(buf))

	_, err = r.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(buf))

	_, err = r.Seek(0, io.SeekStart)
	require.NoError(t, err)
	all, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, all)

	_, err = r.Seek(int64(len(content))+1, io.SeekStart)
	assert.Error(t, err, "seeking past the entry must fail")
}

// TestCompressedEntry verifies deflated entries inflate to the recorded length
func TestCompressedEntry(t *testing.T) {
	content := bytes.Repeat([]byte("tile"), 1024)
	lib := openFixture(t, []fixtureFile{
		{name: "tilecache/big.sti", data: content, compress: true},
	})

	e, ok := lib.Lookup("TileCache/Big.sti")
	require.True(t, ok)
	assert.True(t, e.Compressed())
	assert.Less(t, int(e.StoredSize), len(content), "fixture should actually compress")
	assert.Equal(t, uint32(len(content)), e.Size)

	r, err := lib.OpenEntry(e)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(len(content)), r.Size())

	// Seek works on inflated data for every origin.
	_, err = r.Seek(-8, io.SeekEnd)
	require.NoError(t, err)
	tail := make([]byte, 8)
	_, err = io.ReadFull(r, tail)
	require.NoError(t, err)
	assert.Equal(t, "tiletile", string(tail))
}

// TestEntryModTime verifies the header time is surfaced
func TestEntryModTime(t *testing.T) {
	stamp := time.Date(1999, 4, 23, 12, 0, 0, 0, time.UTC)
	lib := openFixture(t, []fixtureFile{
		{name: "intro.smk", data: []byte("video"), modTime: stamp},
	})

	e, _ := lib.Lookup("intro.smk")
	r, err := lib.OpenEntry(e)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, stamp, r.ModTime())
}

// TestCursorAccounting verifies open cursors are tracked until closed
func TestCursorAccounting(t *testing.T) {
	lib := openFixture(t, []fixtureFile{
		{name: "a.dat", data: []byte("a")},
		{name: "b.dat", data: []byte("b")},
	})

	ea, _ := lib.Lookup("a.dat")
	eb, _ := lib.Lookup("b.dat")
	ra, err := lib.OpenEntry(ea)
	require.NoError(t, err)
	rb, err := lib.OpenEntry(eb)
	require.NoError(t, err)
	assert.Equal(t, 2, lib.OpenCursors())

	require.NoError(t, ra.Close())
	require.NoError(t, rb.Close())
	assert.Equal(t, 0, lib.OpenCursors())
}

// TestMountsFirstMatchWins verifies lookup order across containers
func TestMountsFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	writeLibrary(t, filepath.Join(dir, "alpha.slf"), []fixtureFile{
		{name: "shared.dat", data: []byte("from alpha")},
	})
	writeLibrary(t, filepath.Join(dir, "beta.slf"), []fixtureFile{
		{name: "shared.dat", data: []byte("from beta")},
		{name: "only-beta.dat", data: []byte("beta")},
	})

	mounts := NewMounts()
	require.NoError(t, mounts.MountDir(dir, "*.slf"))
	defer mounts.Close()
	require.Len(t, mounts.Libraries(), 2)

	r, err := mounts.Open("shared.dat")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "from alpha", string(data), "alpha mounts before beta")

	assert.True(t, mounts.Contains("ONLY-BETA.DAT"))

	_, err = mounts.Open("missing.dat")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
