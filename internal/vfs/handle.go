package vfs

import (
	"io"
	"os"
	"time"

	"github.com/assetfs/assetfs/internal/library"
	"github.com/assetfs/assetfs/internal/metrics"
	"github.com/assetfs/assetfs/pkg/errors"
)

// Handle is the capability set every opened file exposes, regardless of
// which backend serves it. A handle is exactly one of two variants: a real
// filesystem file it owns, or a cursor borrowed into a library container
// whose lifetime belongs to the container. Close releases the handle exactly
// once; closing twice is undefined.
type Handle interface {
	// Read fills p completely or fails with an IO_FAILURE error.
	Read(p []byte) error

	// Write writes p completely. It fails with INVALID_OPERATION on a
	// library-backed or read-only handle and with IO_FAILURE when the
	// native write comes up short.
	Write(p []byte) error

	// Seek repositions the cursor relative to the given origin.
	Seek(offset int64, origin SeekOrigin) error

	// Position returns the current cursor offset. It never fails.
	Position() int64

	// Size returns the file's length: filesystem metadata for a real file,
	// the recorded header length for a library entry.
	Size() (int64, error)

	// ModTime returns the file's modification time.
	ModTime() (time.Time, error)

	// Close releases the native resource or the container cursor.
	Close() error
}

// realHandle wraps a native file the handle owns.
type realHandle struct {
	f       *os.File
	name    string
	intent  AccessIntent
	pos     int64
	metrics *metrics.Collector
}

func newRealHandle(f *os.File, name string, intent AccessIntent, m *metrics.Collector) *realHandle {
	return &realHandle{f: f, name: name, intent: intent, metrics: m}
}

func (h *realHandle) Read(p []byte) error {
	if !h.intent.CanRead() {
		return errors.InvalidOperation("read", "handle was opened with "+h.intent.String()+" intent")
	}
	n, err := io.ReadFull(h.f, p)
	h.pos += int64(n)
	if err != nil {
		h.metrics.RecordError("read")
		return errors.IOFailure("read", h.name, err)
	}
	h.metrics.RecordRead(n)
	return nil
}

func (h *realHandle) Write(p []byte) error {
	if !h.intent.CanWrite() {
		return errors.InvalidOperation("write", "handle was opened with "+h.intent.String()+" intent")
	}
	n, err := h.f.Write(p)
	h.pos += int64(n)
	if err != nil || n != len(p) {
		h.metrics.RecordError("write")
		return errors.IOFailure("write", h.name, err)
	}
	h.metrics.RecordWrite(n)
	return nil
}

func (h *realHandle) Seek(offset int64, origin SeekOrigin) error {
	pos, err := h.f.Seek(offset, origin.whence())
	if err != nil {
		h.metrics.RecordError("seek")
		return errors.IOFailure("seek", h.name, err)
	}
	h.pos = pos
	return nil
}

func (h *realHandle) Position() int64 {
	if pos, err := h.f.Seek(0, io.SeekCurrent); err == nil {
		h.pos = pos
	}
	return h.pos
}

func (h *realHandle) Size() (int64, error) {
	fi, err := h.f.Stat()
	if err != nil {
		h.metrics.RecordError("size")
		return 0, errors.IOFailure("size", h.name, err)
	}
	return fi.Size(), nil
}

func (h *realHandle) ModTime() (time.Time, error) {
	fi, err := h.f.Stat()
	if err != nil {
		return time.Time{}, errors.IOFailure("time", h.name, err)
	}
	return fi.ModTime(), nil
}

func (h *realHandle) Close() error {
	if err := h.f.Close(); err != nil {
		return errors.IOFailure("close", h.name, err)
	}
	return nil
}

// libraryHandle wraps a cursor borrowed from a mounted container. It is
// always read-only; the container's data outlives the handle.
type libraryHandle struct {
	r       *library.EntryReader
	name    string
	metrics *metrics.Collector
}

func newLibraryHandle(r *library.EntryReader, name string, m *metrics.Collector) *libraryHandle {
	return &libraryHandle{r: r, name: name, metrics: m}
}

func (h *libraryHandle) Read(p []byte) error {
	n, err := io.ReadFull(h.r, p)
	if err != nil {
		h.metrics.RecordError("read")
		return errors.IOFailure("read", h.name, err)
	}
	h.metrics.RecordRead(n)
	return nil
}

func (h *libraryHandle) Write(p []byte) error {
	return errors.InvalidOperation("write", "tried to write to library file").WithPath(h.name)
}

func (h *libraryHandle) Seek(offset int64, origin SeekOrigin) error {
	if _, err := h.r.Seek(offset, origin.whence()); err != nil {
		h.metrics.RecordError("seek")
		return errors.IOFailure("seek", h.name, err)
	}
	return nil
}

func (h *libraryHandle) Position() int64 {
	return h.r.Position()
}

func (h *libraryHandle) Size() (int64, error) {
	return h.r.Size(), nil
}

func (h *libraryHandle) ModTime() (time.Time, error) {
	return h.r.ModTime(), nil
}

func (h *libraryHandle) Close() error {
	return h.r.Close()
}
