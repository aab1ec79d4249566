package library

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/assetfs/assetfs/pkg/errors"
)

// Magic identifies a library container file.
const Magic = "ALIB"

// FormatVersion is the container format version this reader understands.
const FormatVersion = 1

// Entry flags.
const (
	// FlagDeflate marks an entry whose stored bytes are deflate-compressed.
	FlagDeflate = 1 << 0
)

// Entry describes one logical file recorded in a container's file table.
type Entry struct {
	// Name is the logical name, forward-slash separated.
	Name string

	// Offset is the absolute position of the stored bytes in the container.
	Offset int64

	// StoredSize is the number of bytes stored in the container.
	StoredSize uint32

	// Size is the original (uncompressed) length of the entry.
	Size uint32

	// Flags holds storage flags, see FlagDeflate.
	Flags uint16

	// ModTime is the recorded modification time of the packed file.
	ModTime time.Time
}

// Compressed reports whether the entry's stored bytes are deflated.
func (e *Entry) Compressed() bool {
	return e.Flags&FlagDeflate != 0
}

// Library is an open container. It owns the underlying file; entry cursors
// opened from it borrow its state and must not outlive it.
type Library struct {
	path    string
	f       *os.File
	entries []Entry
	byName  map[string]int

	// cursors counts open entry readers, for leak diagnostics.
	cursors int
}

// Open opens a library container and parses its file table.
func Open(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IOFailure("open", path, err)
	}

	lib := &Library{
		path:   path,
		f:      f,
		byName: make(map[string]int),
	}
	if err := lib.readFileTable(); err != nil {
		f.Close()
		return nil, err
	}
	return lib, nil
}

// readFileTable parses the header and entry table.
func (l *Library) readFileTable() error {
	var header struct {
		Magic    [4]byte
		Version  uint16
		Reserved uint16
		Count    uint32
	}
	if err := binary.Read(l.f, binary.LittleEndian, &header); err != nil {
		return errors.IOFailure("parse", l.path, fmt.Errorf("reading header: %w", err))
	}
	if string(header.Magic[:]) != Magic {
		return errors.IOFailure("parse", l.path, fmt.Errorf("bad magic %q", header.Magic))
	}
	if header.Version != FormatVersion {
		return errors.IOFailure("parse", l.path, fmt.Errorf("unsupported version %d", header.Version))
	}

	l.entries = make([]Entry, header.Count)
	for i := range l.entries {
		e, err := readEntry(l.f)
		if err != nil {
			return errors.IOFailure("parse", l.path, fmt.Errorf("reading entry %d: %w", i, err))
		}
		l.entries[i] = e
		key := normalizeName(e.Name)
		if _, dup := l.byName[key]; !dup {
			// First entry wins; containers are not expected to carry
			// duplicate names.
			l.byName[key] = i
		}
	}
	return nil
}

// readEntry decodes one file-table record.
func readEntry(r io.Reader) (Entry, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return Entry{}, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Entry{}, err
	}

	var fixed struct {
		Offset     uint64
		StoredSize uint32
		Size       uint32
		Flags      uint16
		ModTime    int64
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return Entry{}, err
	}

	return Entry{
		Name:       string(name),
		Offset:     int64(fixed.Offset),
		StoredSize: fixed.StoredSize,
		Size:       fixed.Size,
		Flags:      fixed.Flags,
		ModTime:    time.Unix(fixed.ModTime, 0).UTC(),
	}, nil
}

// normalizeName folds case and separators for table lookups.
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
}

// Path returns the on-disk path of the container.
func (l *Library) Path() string {
	return l.path
}

// Entries returns the container's file table in recorded order.
func (l *Library) Entries() []Entry {
	return l.entries
}

// Lookup finds an entry by logical name, ignoring case and separator style.
// The boolean is false when the container has no such entry.
func (l *Library) Lookup(name string) (*Entry, bool) {
	i, ok := l.byName[normalizeName(name)]
	if !ok {
		return nil, false
	}
	return &l.entries[i], true
}

// OpenEntry opens a read cursor over an entry. Deflated entries are inflated
// in full here so that every seek origin works uniformly afterwards.
func (l *Library) OpenEntry(e *Entry) (*EntryReader, error) {
	r := &EntryReader{lib: l, entry: e}
	if e.Compressed() {
		src := flate.NewReader(io.NewSectionReader(l.f, e.Offset, int64(e.StoredSize)))
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return nil, errors.IOFailure("inflate", l.entryPath(e), err)
		}
		if len(data) != int(e.Size) {
			return nil, errors.IOFailure("inflate", l.entryPath(e),
				fmt.Errorf("inflated to %d bytes, header records %d", len(data), e.Size))
		}
		r.data = data
	}
	l.cursors++
	return r, nil
}

// OpenCursors returns the number of entry cursors not yet closed.
func (l *Library) OpenCursors() int {
	return l.cursors
}

// Close releases the container's file. Cursors still open become invalid.
func (l *Library) Close() error {
	if err := l.f.Close(); err != nil {
		return errors.IOFailure("close", l.path, err)
	}
	return nil
}

func (l *Library) entryPath(e *Entry) string {
	return l.path + "!" + e.Name
}

// EntryReader is a cursor over one entry. The cursor position belongs to the
// reader; the underlying bytes belong to the container.
type EntryReader struct {
	lib   *Library
	entry *Entry
	pos   int64

	// data holds the inflated bytes for compressed entries, nil for raw.
	data []byte
}

// Entry returns the file-table record the cursor reads from.
func (r *EntryReader) Entry() *Entry {
	return r.entry
}

// Size returns the entry's original length.
func (r *EntryReader) Size() int64 {
	return int64(r.entry.Size)
}

// ModTime returns the modification time recorded in the entry header.
func (r *EntryReader) ModTime() time.Time {
	return r.entry.ModTime
}

// Position returns the current cursor offset.
func (r *EntryReader) Position() int64 {
	return r.pos
}

// Read reads up to len(p) bytes at the cursor, advancing it. It returns
// io.EOF once the cursor reaches the entry's end.
func (r *EntryReader) Read(p []byte) (int, error) {
	remaining := r.Size() - r.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	var n int
	var err error
	if r.data != nil {
		n = copy(p, r.data[r.pos:])
	} else {
		n, err = r.lib.f.ReadAt(p, r.entry.Offset+r.pos)
	}
	r.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Seek repositions the cursor. whence follows the io.Seeker convention.
func (r *EntryReader) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = r.pos + offset
	case io.SeekEnd:
		pos = r.Size() + offset
	default:
		return r.pos, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 || pos > r.Size() {
		return r.pos, fmt.Errorf("seek position %d outside entry of %d bytes", pos, r.Size())
	}
	r.pos = pos
	return pos, nil
}

// Close releases the cursor and tells the container it is no longer needed.
func (r *EntryReader) Close() error {
	if r.lib != nil {
		r.lib.cursors--
		r.lib = nil
	}
	r.data = nil
	return nil
}
