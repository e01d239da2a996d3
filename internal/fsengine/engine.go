// Package fsengine declares the contract of the log-structured
// filesystem engine mounted on a partition. The engine's internals,
// wear leveling, block allocation, directory encoding, are out of
// scope here; this package only fixes the interface the
// filesystem access layer and the RPC handlers depend on, plus a
// reference implementation over the block device facade used by tests
// and the demo command.
package fsengine

import "errors"

// Typed errors surfaced to callers, classified so the RPC layer can
// map them onto wire status codes without string matching.
var (
	ErrIO       = errors.New("fsengine: io error")
	ErrNotExist = errors.New("fsengine: no such file or directory")
	ErrExist    = errors.New("fsengine: file exists")
	ErrInvalid  = errors.New("fsengine: invalid argument")
	ErrNoSpace  = errors.New("fsengine: no space left on device")
)

// OpenFlags mirrors a conventional POSIX-style open flag set.
type OpenFlags uint8

const (
	ORDONLY OpenFlags = 1 << iota
	OWRONLY
	ORDWR
	OCREAT
	OEXCL
	OTRUNC
	OAPPEND
)

// Whence mirrors the conventional POSIX seek origins.
type Whence int

const (
	SeekSet Whence = iota
	SeekCur
	SeekEnd
)

// FileInfo is one directory entry or a stat result.
type FileInfo struct {
	Name  string
	Size  int64
	IsDir bool
}

// File is an open file handle. Directories are read through Dir.
type File interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Seek(offset int64, whence Whence) (int64, error)
	Size() (int64, error)
	Close() error
}

// Dir is an open directory handle, read one entry per call to mirror
// the RPC-facing dirread contract directly.
type Dir interface {
	ReadEntry() (info FileInfo, valid bool, err error)
	Close() error
}

// Engine is the filesystem engine mounted on one partition.
type Engine interface {
	// Open opens path with the given flags, returning a File handle.
	Open(path string, flags OpenFlags) (File, error)
	// OpenDir opens path as a directory for sequential reads.
	OpenDir(path string) (Dir, error)
	// Stat returns metadata for path without opening it.
	Stat(path string) (FileInfo, error)
	// Remove unlinks path.
	Remove(path string) error
	// Format reinitializes the filesystem, discarding all content.
	Format() error
}
