package vfs

import (
	"fmt"
	"os"
)

// AccessIntent is the caller's declared purpose for opening a file. It is
// fixed for the lifetime of the handle it opens and determines both the
// native open flags and which capabilities the handle may exercise.
type AccessIntent int

const (
	IntentRead AccessIntent = iota
	IntentWrite
	IntentReadWrite
	IntentAppend
)

// String returns the intent name for diagnostics.
func (i AccessIntent) String() string {
	switch i {
	case IntentRead:
		return "read"
	case IntentWrite:
		return "write"
	case IntentReadWrite:
		return "read-write"
	case IntentAppend:
		return "append"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// CanRead reports whether handles opened with this intent may read.
func (i AccessIntent) CanRead() bool {
	return i == IntentRead || i == IntentReadWrite
}

// CanWrite reports whether handles opened with this intent may write.
func (i AccessIntent) CanWrite() bool {
	return i == IntentWrite || i == IntentReadWrite || i == IntentAppend
}

// OpenFlags translates an access intent into the native open flag set. The
// translation is exhaustive over the four intents; any other value panics,
// because an unknown intent is a caller contract violation rather than an
// environmental condition.
func OpenFlags(intent AccessIntent) int {
	switch intent {
	case IntentRead:
		return os.O_RDONLY
	case IntentWrite:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case IntentReadWrite:
		return os.O_RDWR | os.O_CREATE
	case IntentAppend:
		return os.O_WRONLY | os.O_APPEND | os.O_CREATE
	default:
		panic(fmt.Sprintf("unknown access intent %d", int(intent)))
	}
}

// SeekOrigin names the reference point of a seek.
type SeekOrigin int

const (
	SeekStart SeekOrigin = iota
	SeekCurrent
	SeekEnd
)

// whence maps the origin onto the io.Seeker convention. Unknown origins
// panic for the same reason OpenFlags does.
func (o SeekOrigin) whence() int {
	switch o {
	case SeekStart:
		return 0
	case SeekCurrent:
		return 1
	case SeekEnd:
		return 2
	default:
		panic(fmt.Sprintf("unknown seek origin %d", int(o)))
	}
}
