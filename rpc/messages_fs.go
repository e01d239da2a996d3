package rpc

import (
	"github.com/flashrpc/flashrpc/wire"
)

// Wire-schema limits for the filesystem callset.
const (
	MaxLabelLen         = 16
	MaxPathLen          = 64
	MaxDirListEntries   = 8
	MaxFileReadReplyLen = 512
	MaxFileWriteCallLen = 512
)

// Filesystem callset message tags (inner tag / which_msg).
const (
	MsgGetFsInfoCall uint8 = iota + 1
	MsgGetFsInfoReply
	MsgDirOpenCall
	MsgDirOpenReply
	MsgDirCloseCall
	MsgDirCloseReply
	MsgDirReadCall
	MsgDirReadReply
	MsgDirListCall
	MsgDirListReply
	MsgFileOpenCall
	MsgFileOpenReply
	MsgFileCloseCall
	MsgFileCloseReply
	MsgFileReadCall
	MsgFileReadReply
	MsgFileWriteCall
	MsgFileWriteReply
	MsgRemoveCall
	MsgRemoveReply
	MsgFormatCall
	MsgFormatReply
)

// GetFsInfoCall is getfsinfo's request: {label}.
type GetFsInfoCall struct {
	Label string
}

func (c GetFsInfoCall) Marshal(buf []byte) int {
	return wire.PutString(buf, c.Label, MaxLabelLen)
}

func (c *GetFsInfoCall) Unmarshal(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, wire.ErrTruncated
	}
	s, n := wire.GetString(buf)
	c.Label = s
	return n, nil
}

// GetFsInfoReply is getfsinfo's reply: {address, size, block_size,
// block_count}. block_count appears exactly once.
type GetFsInfoReply struct {
	Address    uint64
	Size       uint64
	BlockSize  uint32
	BlockCount uint32
}

func (r GetFsInfoReply) Marshal(buf []byte) int {
	n := 0
	n += wire.PutUint64(buf[n:], r.Address)
	n += wire.PutUint64(buf[n:], r.Size)
	n += wire.PutUint32(buf[n:], r.BlockSize)
	n += wire.PutUint32(buf[n:], r.BlockCount)
	return n
}

func (r *GetFsInfoReply) Unmarshal(buf []byte) (int, error) {
	if len(buf) < 24 {
		return 0, wire.ErrTruncated
	}
	n := 0
	var v uint32
	r.Address, _ = wire.GetUint64(buf[n:])
	n += 8
	r.Size, _ = wire.GetUint64(buf[n:])
	n += 8
	v, _ = wire.GetUint32(buf[n:])
	r.BlockSize = v
	n += 4
	v, _ = wire.GetUint32(buf[n:])
	r.BlockCount = v
	n += 4
	return n, nil
}

// DirOpenCall is diropen's request: {label, path}.
type DirOpenCall struct {
	Label string
	Path  string
}

func (c DirOpenCall) Marshal(buf []byte) int {
	n := wire.PutString(buf, c.Label, MaxLabelLen)
	n += wire.PutString(buf[n:], c.Path, MaxPathLen)
	return n
}

func (c *DirOpenCall) Unmarshal(buf []byte) (int, error) {
	label, n := wire.GetString(buf)
	path, n2 := wire.GetString(buf[n:])
	c.Label, c.Path = label, path
	return n + n2, nil
}

// DirOpenReply/DirCloseReply/FileCloseReply carry only an fd or
// nothing; status travels in the dispatch reply header, so any
// failure maps to RPC_HANDLER_ERROR there.
type DirOpenReply struct {
	FD int32
}

func (r DirOpenReply) Marshal(buf []byte) int  { return wire.PutInt32(buf, r.FD) }
func (r *DirOpenReply) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	r.FD = v
	return n, nil
}

// DirCloseCall/FileCloseCall carry only an fd.
type DirCloseCall struct{ FD int32 }

func (c DirCloseCall) Marshal(buf []byte) int { return wire.PutInt32(buf, c.FD) }
func (c *DirCloseCall) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	c.FD = v
	return n, nil
}

type DirCloseReply struct{}

func (r DirCloseReply) Marshal(buf []byte) int             { return 0 }
func (r *DirCloseReply) Unmarshal(buf []byte) (int, error) { return 0, nil }

// DirReadCall is dirread's request: {fd}.
type DirReadCall struct{ FD int32 }

func (c DirReadCall) Marshal(buf []byte) int { return wire.PutInt32(buf, c.FD) }
func (c *DirReadCall) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	c.FD = v
	return n, nil
}

// DirReadReply is dirread's reply: {valid, info}. End-of-directory is
// valid=false with status SUCCESS.
type DirReadReply struct {
	Valid bool
	Name  string
	Size  int64
	IsDir bool
}

func (r DirReadReply) Marshal(buf []byte) int {
	n := 0
	if r.Valid {
		buf[n] = 1
	} else {
		buf[n] = 0
	}
	n++
	n += wire.PutString(buf[n:], r.Name, MaxPathLen)
	n += wire.PutUint64(buf[n:], uint64(r.Size))
	if r.IsDir {
		buf[n] = 1
	} else {
		buf[n] = 0
	}
	n++
	return n
}

func (r *DirReadReply) Unmarshal(buf []byte) (int, error) {
	n := 0
	r.Valid = buf[n] != 0
	n++
	name, consumed := wire.GetString(buf[n:])
	r.Name = name
	n += consumed
	size, _ := wire.GetUint64(buf[n:])
	r.Size = int64(size)
	n += 8
	r.IsDir = buf[n] != 0
	n++
	return n, nil
}

// DirEntry is one element of a dirlist reply.
type DirEntry struct {
	Name  string
	Size  int64
	IsDir bool
}

// DirListCall is dirlist's request: {label, path, start_idx}.
type DirListCall struct {
	Label    string
	Path     string
	StartIdx uint32
}

func (c DirListCall) Marshal(buf []byte) int {
	n := wire.PutString(buf, c.Label, MaxLabelLen)
	n += wire.PutString(buf[n:], c.Path, MaxPathLen)
	n += wire.PutUint32(buf[n:], c.StartIdx)
	return n
}

func (c *DirListCall) Unmarshal(buf []byte) (int, error) {
	label, n := wire.GetString(buf)
	path, n2 := wire.GetString(buf[n:])
	n += n2
	idx, n3 := wire.GetUint32(buf[n:])
	c.Label, c.Path, c.StartIdx = label, path, idx
	return n + n3, nil
}

// DirListReply is dirlist's reply: {valid, num_entries, start_idx,
// info[]}. num_entries is always the true total traversed, even when
// the returned slice is capped.
type DirListReply struct {
	Valid      bool
	NumEntries uint32
	StartIdx   uint32
	Entries    []DirEntry
}

func (r DirListReply) Marshal(buf []byte) int {
	n := 0
	if r.Valid {
		buf[n] = 1
	} else {
		buf[n] = 0
	}
	n++
	n += wire.PutUint32(buf[n:], r.NumEntries)
	n += wire.PutUint32(buf[n:], r.StartIdx)
	buf[n] = byte(len(r.Entries))
	n++
	for _, e := range r.Entries {
		n += wire.PutString(buf[n:], e.Name, MaxPathLen)
		n += wire.PutUint64(buf[n:], uint64(e.Size))
		if e.IsDir {
			buf[n] = 1
		} else {
			buf[n] = 0
		}
		n++
	}
	return n
}

func (r *DirListReply) Unmarshal(buf []byte) (int, error) {
	n := 0
	r.Valid = buf[n] != 0
	n++
	v, consumed := wire.GetUint32(buf[n:])
	r.NumEntries = v
	n += consumed
	v, consumed = wire.GetUint32(buf[n:])
	r.StartIdx = v
	n += consumed
	count := int(buf[n])
	n++
	r.Entries = make([]DirEntry, 0, count)
	for i := 0; i < count; i++ {
		name, c := wire.GetString(buf[n:])
		n += c
		size, _ := wire.GetUint64(buf[n:])
		n += 8
		isDir := buf[n] != 0
		n++
		r.Entries = append(r.Entries, DirEntry{Name: name, Size: int64(size), IsDir: isDir})
	}
	return n, nil
}

// FileOpenCall is fileopen's request: {label, path, flags}.
type FileOpenCall struct {
	Label string
	Path  string
	Flags uint8
}

func (c FileOpenCall) Marshal(buf []byte) int {
	n := wire.PutString(buf, c.Label, MaxLabelLen)
	n += wire.PutString(buf[n:], c.Path, MaxPathLen)
	buf[n] = c.Flags
	n++
	return n
}

func (c *FileOpenCall) Unmarshal(buf []byte) (int, error) {
	label, n := wire.GetString(buf)
	path, n2 := wire.GetString(buf[n:])
	n += n2
	c.Label, c.Path = label, path
	c.Flags = buf[n]
	n++
	return n, nil
}

// FileOpenReply is fileopen's reply: {status, fd}.
type FileOpenReply struct {
	Status int32
	FD     int32
}

func (r FileOpenReply) Marshal(buf []byte) int {
	n := wire.PutInt32(buf, r.Status)
	n += wire.PutInt32(buf[n:], r.FD)
	return n
}

func (r *FileOpenReply) Unmarshal(buf []byte) (int, error) {
	s, n := wire.GetInt32(buf)
	fd, n2 := wire.GetInt32(buf[n:])
	r.Status, r.FD = s, fd
	return n + n2, nil
}

// FileCloseCall carries only an fd.
type FileCloseCall struct{ FD int32 }

func (c FileCloseCall) Marshal(buf []byte) int { return wire.PutInt32(buf, c.FD) }
func (c *FileCloseCall) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	c.FD = v
	return n, nil
}

type FileCloseReply struct{}

func (r FileCloseReply) Marshal(buf []byte) int             { return 0 }
func (r *FileCloseReply) Unmarshal(buf []byte) (int, error) { return 0, nil }

// FileReadCall is fileread's request: {fd, offset, whence, read_size}.
type FileReadCall struct {
	FD       int32
	Offset   int64
	Whence   uint8
	ReadSize uint32
}

func (c FileReadCall) Marshal(buf []byte) int {
	n := wire.PutInt32(buf, c.FD)
	n += wire.PutUint64(buf[n:], uint64(c.Offset))
	buf[n] = c.Whence
	n++
	n += wire.PutUint32(buf[n:], c.ReadSize)
	return n
}

func (c *FileReadCall) Unmarshal(buf []byte) (int, error) {
	fd, n := wire.GetInt32(buf)
	off, consumed := wire.GetUint64(buf[n:])
	n += consumed
	whence := buf[n]
	n++
	size, consumed2 := wire.GetUint32(buf[n:])
	n += consumed2
	c.FD, c.Offset, c.Whence, c.ReadSize = fd, int64(off), whence, size
	return n, nil
}

// FileReadReply is fileread's reply: {status, offset, data}.
type FileReadReply struct {
	Status int32
	Offset int64
	Data   []byte
}

func (r FileReadReply) Marshal(buf []byte) int {
	n := wire.PutInt32(buf, r.Status)
	n += wire.PutUint64(buf[n:], uint64(r.Offset))
	n += wire.PutBytes(buf[n:], r.Data)
	return n
}

func (r *FileReadReply) Unmarshal(buf []byte) (int, error) {
	s, n := wire.GetInt32(buf)
	off, consumed := wire.GetUint64(buf[n:])
	n += consumed
	data, consumed2 := wire.GetBytes(buf[n:])
	n += consumed2
	r.Status, r.Offset, r.Data = s, int64(off), data
	return n, nil
}

// FileWriteCall is filewrite's request: {fd, offset, whence, data}.
type FileWriteCall struct {
	FD     int32
	Offset int64
	Whence uint8
	Data   []byte
}

func (c FileWriteCall) Marshal(buf []byte) int {
	n := wire.PutInt32(buf, c.FD)
	n += wire.PutUint64(buf[n:], uint64(c.Offset))
	buf[n] = c.Whence
	n++
	n += wire.PutBytes(buf[n:], c.Data)
	return n
}

func (c *FileWriteCall) Unmarshal(buf []byte) (int, error) {
	fd, n := wire.GetInt32(buf)
	off, consumed := wire.GetUint64(buf[n:])
	n += consumed
	whence := buf[n]
	n++
	data, consumed2 := wire.GetBytes(buf[n:])
	n += consumed2
	c.FD, c.Offset, c.Whence, c.Data = fd, int64(off), whence, data
	return n, nil
}

// FileWriteReply is filewrite's reply: {status} (bytes written, or -1
// on any failure).
type FileWriteReply struct {
	Status int32
}

func (r FileWriteReply) Marshal(buf []byte) int { return wire.PutInt32(buf, r.Status) }
func (r *FileWriteReply) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	r.Status = v
	return n, nil
}

// RemoveCall is remove's request: {label, path}.
type RemoveCall struct {
	Label string
	Path  string
}

func (c RemoveCall) Marshal(buf []byte) int {
	n := wire.PutString(buf, c.Label, MaxLabelLen)
	n += wire.PutString(buf[n:], c.Path, MaxPathLen)
	return n
}

func (c *RemoveCall) Unmarshal(buf []byte) (int, error) {
	label, n := wire.GetString(buf)
	path, n2 := wire.GetString(buf[n:])
	c.Label, c.Path = label, path
	return n + n2, nil
}

type RemoveReply struct{ Status int32 }

func (r RemoveReply) Marshal(buf []byte) int { return wire.PutInt32(buf, r.Status) }
func (r *RemoveReply) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	r.Status = v
	return n, nil
}

// FormatCall is format's request: {label}.
type FormatCall struct{ Label string }

func (c FormatCall) Marshal(buf []byte) int { return wire.PutString(buf, c.Label, MaxLabelLen) }
func (c *FormatCall) Unmarshal(buf []byte) (int, error) {
	s, n := wire.GetString(buf)
	c.Label = s
	return n, nil
}

type FormatReply struct{ Status int32 }

func (r FormatReply) Marshal(buf []byte) int { return wire.PutInt32(buf, r.Status) }
func (r *FormatReply) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	r.Status = v
	return n, nil
}
