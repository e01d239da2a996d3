package fsengine

import (
	"sort"
	"strings"
	"sync"

	"github.com/flashrpc/flashrpc/internal/blockdev"
)

// MemEngine is a reference Engine that persists file content through a
// blockdev.Device: file bytes are actually erased, programmed, and
// read against the backing RawDevice at the block granularity the
// device was built with, and every block operation runs bracketed by
// the device's per-mount lock. It keeps only a directory index (path
// to block range) in process memory, sufficient for tests and the
// demo command, which never touch real flash.
type MemEngine struct {
	device *blockdev.Device

	mu        sync.Mutex
	files     map[string]fileMeta
	nextBlock uint32
}

type fileMeta struct {
	startBlock uint32
	numBlocks  uint32
	size       int64
}

// NewMemEngine returns an empty filesystem backed by device.
func NewMemEngine(device *blockdev.Device) *MemEngine {
	return &MemEngine{device: device, files: make(map[string]fileMeta)}
}

// Seed installs content at path without going through Open/Write, for
// test setup and for provisioning demo scripts.
func (e *MemEngine) Seed(path string, content []byte) error {
	return e.persistFile(path, content)
}

// persistFile allocates fresh device blocks for data, erases and
// programs them, and records path's metadata. Blocks already assigned
// to path, if any, are abandoned rather than reclaimed; this engine
// never compacts.
func (e *MemEngine) persistFile(path string, data []byte) error {
	blockSize := int64(e.device.BlockSize())
	numBlocks := uint32((int64(len(data)) + blockSize - 1) / blockSize)

	e.mu.Lock()
	if e.nextBlock+numBlocks > e.device.BlockCount() {
		e.mu.Unlock()
		return ErrNoSpace
	}
	start := e.nextBlock
	e.nextBlock += numBlocks
	e.mu.Unlock()

	e.device.Lock()
	for i := uint32(0); i < numBlocks; i++ {
		block := start + i
		if err := e.device.Erase(block); err != nil {
			e.device.Unlock()
			return ErrIO
		}
		lo := int64(i) * blockSize
		hi := lo + blockSize
		if hi > int64(len(data)) {
			hi = int64(len(data))
		}
		if _, err := e.device.Program(block, 0, data[lo:hi]); err != nil {
			e.device.Unlock()
			return ErrIO
		}
	}
	e.device.Unlock()

	e.mu.Lock()
	e.files[path] = fileMeta{startBlock: start, numBlocks: numBlocks, size: int64(len(data))}
	e.mu.Unlock()
	return nil
}

// loadFile reads meta's blocks back from the device.
func (e *MemEngine) loadFile(meta fileMeta) ([]byte, error) {
	if meta.numBlocks == 0 {
		return nil, nil
	}
	blockSize := int64(e.device.BlockSize())
	buf := make([]byte, int64(meta.numBlocks)*blockSize)

	e.device.Lock()
	defer e.device.Unlock()
	for i := uint32(0); i < meta.numBlocks; i++ {
		block := meta.startBlock + i
		lo := int64(i) * blockSize
		if _, err := e.device.Read(block, 0, buf[lo:lo+blockSize]); err != nil {
			return nil, ErrIO
		}
	}
	return buf[:meta.size], nil
}

type memFile struct {
	e      *MemEngine
	path   string
	flags  OpenFlags
	data   []byte
	offset int64
}

func (e *MemEngine) Open(path string, flags OpenFlags) (File, error) {
	e.mu.Lock()
	meta, ok := e.files[path]
	if !ok {
		if flags&OCREAT == 0 {
			e.mu.Unlock()
			return nil, ErrNotExist
		}
		e.files[path] = fileMeta{}
	} else if flags&OCREAT != 0 && flags&OEXCL != 0 {
		e.mu.Unlock()
		return nil, ErrExist
	}
	e.mu.Unlock()

	var data []byte
	if ok && flags&OTRUNC == 0 {
		loaded, err := e.loadFile(meta)
		if err != nil {
			return nil, err
		}
		data = append([]byte(nil), loaded...)
	}

	f := &memFile{e: e, path: path, flags: flags, data: data}
	if flags&OAPPEND != 0 {
		f.offset = int64(len(data))
	}
	return f, nil
}

func (e *MemEngine) OpenDir(path string) (Dir, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	var names []string
	seen := map[string]bool{}
	for p := range e.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" {
			continue
		}
		name := rest
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			name = rest[:idx]
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]FileInfo, 0, len(names))
	for _, name := range names {
		full := prefix + name
		if meta, ok := e.files[full]; ok {
			entries = append(entries, FileInfo{Name: name, Size: meta.size})
		} else {
			entries = append(entries, FileInfo{Name: name, IsDir: true})
		}
	}
	return &memDir{entries: entries}, nil
}

func (e *MemEngine) Stat(path string) (FileInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	meta, ok := e.files[path]
	if !ok {
		return FileInfo{}, ErrNotExist
	}
	return FileInfo{Name: path, Size: meta.size}, nil
}

func (e *MemEngine) Remove(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.files[path]; !ok {
		return ErrNotExist
	}
	delete(e.files, path)
	return nil
}

func (e *MemEngine) Format() error {
	e.mu.Lock()
	e.files = make(map[string]fileMeta)
	e.nextBlock = 0
	e.mu.Unlock()
	return nil
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.offset >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(p, f.data[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.offset + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	n := copy(f.data[f.offset:end], p)
	f.offset += int64(n)
	return n, nil
}

func (f *memFile) Seek(offset int64, whence Whence) (int64, error) {
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = f.offset
	case SeekEnd:
		base = int64(len(f.data))
	default:
		return 0, ErrInvalid
	}
	newOffset := base + offset
	if newOffset < 0 {
		return 0, ErrInvalid
	}
	f.offset = newOffset
	return f.offset, nil
}

func (f *memFile) Size() (int64, error) {
	return int64(len(f.data)), nil
}

func (f *memFile) Close() error {
	return f.e.persistFile(f.path, f.data)
}

type memDir struct {
	entries []FileInfo
	pos     int
}

func (d *memDir) ReadEntry() (FileInfo, bool, error) {
	if d.pos >= len(d.entries) {
		return FileInfo{}, false, nil
	}
	entry := d.entries[d.pos]
	d.pos++
	return entry, true, nil
}

func (d *memDir) Close() error {
	return nil
}
