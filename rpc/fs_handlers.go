package rpc

import (
	"github.com/flashrpc/flashrpc/internal/descpool"
	"github.com/flashrpc/flashrpc/internal/fsapi"
	"github.com/flashrpc/flashrpc/internal/fsengine"
	"github.com/flashrpc/flashrpc/internal/logging"
	"github.com/flashrpc/flashrpc/internal/mount"
	"github.com/flashrpc/flashrpc/wire"
)

// CallsetFilesystem is the outer tag of the filesystem callset.
const CallsetFilesystem uint8 = 1

// openHandle is what a descriptor-pool slot holds for a filesystem fd:
// the capability bound to the fd's mount, plus which kind of handle it
// is and, for directories, the open fsengine.Dir.
type openHandle struct {
	label string
	cap   *fsapi.Capability
	isDir bool
	dir   fsengine.Dir
	stat  fsengine.FileInfo
}

// FilesystemHandlers implements the filesystem-RPC handler registry.
// It owns no state of its own beyond the shared mount registry and
// descriptor pool handed to it at construction.
type FilesystemHandlers struct {
	registry *mount.Registry
	pool     *descpool.Pool
	logger   *logging.Logger
}

// NewFilesystemHandlers constructs the filesystem callset resolver.
func NewFilesystemHandlers(registry *mount.Registry, pool *descpool.Pool, logger *logging.Logger) *FilesystemHandlers {
	if logger == nil {
		logger = logging.Default()
	}
	return &FilesystemHandlers{registry: registry, pool: pool, logger: logger}
}

// OuterTag implements CallsetResolver.
func (h *FilesystemHandlers) OuterTag() uint8 { return CallsetFilesystem }

// Resolve implements CallsetResolver.
func (h *FilesystemHandlers) Resolve(msgTag uint8) (Handler, bool) {
	switch msgTag {
	case MsgGetFsInfoCall:
		return h.getFsInfo, true
	case MsgDirOpenCall:
		return h.dirOpen, true
	case MsgDirCloseCall:
		return h.dirClose, true
	case MsgDirReadCall:
		return h.dirRead, true
	case MsgDirListCall:
		return h.dirList, true
	case MsgFileOpenCall:
		return h.fileOpen, true
	case MsgFileCloseCall:
		return h.fileClose, true
	case MsgFileReadCall:
		return h.fileRead, true
	case MsgFileWriteCall:
		return h.fileWrite, true
	case MsgRemoveCall:
		return h.remove, true
	case MsgFormatCall:
		return h.format, true
	default:
		return nil, false
	}
}

func (h *FilesystemHandlers) getFsInfo(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call GetFsInfoCall
	if _, err := call.Unmarshal(callBytes); err != nil {
		return nil, MsgGetFsInfoReply, wire.StatusRPCHandlerError
	}
	m, ok := h.registry.Lookup(call.Label)
	if !ok {
		h.logger.Warnf("rpc: getfsinfo: unknown mount %q", call.Label)
		return nil, MsgGetFsInfoReply, wire.StatusRPCHandlerError
	}
	reply := GetFsInfoReply{
		Address:    m.BaseAddress,
		Size:       m.ByteLength,
		BlockSize:  m.BlockSize,
		BlockCount: m.BlockCount,
	}
	buf := make([]byte, 32)
	n := reply.Marshal(buf)
	return buf[:n], MsgGetFsInfoReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) dirOpen(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call DirOpenCall
	if _, err := call.Unmarshal(callBytes); err != nil {
		return h.fdReply(-1, MsgDirOpenReply), MsgDirOpenReply, wire.StatusRPCHandlerError
	}
	m, ok := h.registry.Lookup(call.Label)
	if !ok {
		return h.fdReply(-1, MsgDirOpenReply), MsgDirOpenReply, wire.StatusRPCHandlerError
	}
	if _, err := m.Engine.Stat(call.Path); err != nil {
		return h.fdReply(-1, MsgDirOpenReply), MsgDirOpenReply, wire.StatusRPCHandlerError
	}

	cap := fsapi.New(m.Engine)
	dir, err := cap.OpenDir(call.Path)
	if err != nil {
		return h.fdReply(-1, MsgDirOpenReply), MsgDirOpenReply, wire.StatusRPCHandlerError
	}

	fd, err := h.pool.Acquire(&openHandle{label: call.Label, cap: cap, isDir: true, dir: dir})
	if err != nil {
		dir.Close()
		return h.fdReply(-1, MsgDirOpenReply), MsgDirOpenReply, wire.StatusRPCHandlerError
	}

	buf := make([]byte, 4)
	n := DirOpenReply{FD: int32(fd)}.Marshal(buf)
	return buf[:n], MsgDirOpenReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) fdReply(fd int32, _ uint8) []byte {
	buf := make([]byte, 4)
	n := DirOpenReply{FD: fd}.Marshal(buf)
	return buf[:n]
}

func (h *FilesystemHandlers) dirClose(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call DirCloseCall
	call.Unmarshal(callBytes)

	oh, ok := h.lookupDir(int(call.FD))
	if !ok {
		return nil, MsgDirCloseReply, wire.StatusRPCHandlerError
	}
	if err := oh.dir.Close(); err != nil {
		h.pool.Release(int(call.FD))
		return nil, MsgDirCloseReply, wire.StatusRPCHandlerError
	}
	if err := h.pool.Release(int(call.FD)); err != nil {
		return nil, MsgDirCloseReply, wire.StatusRPCHandlerError
	}
	return nil, MsgDirCloseReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) dirRead(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call DirReadCall
	call.Unmarshal(callBytes)

	oh, ok := h.lookupDir(int(call.FD))
	if !ok {
		return nil, MsgDirReadReply, wire.StatusRPCHandlerError
	}
	info, valid, err := oh.dir.ReadEntry()
	if err != nil {
		buf := make([]byte, 1+1+MaxPathLen+8+1)
		n := DirReadReply{Valid: false}.Marshal(buf)
		return buf[:n], MsgDirReadReply, wire.StatusSuccess
	}
	buf := make([]byte, 1+1+MaxPathLen+8+1)
	n := DirReadReply{Valid: valid, Name: info.Name, Size: info.Size, IsDir: info.IsDir}.Marshal(buf)
	return buf[:n], MsgDirReadReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) dirList(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call DirListCall
	call.Unmarshal(callBytes)

	m, ok := h.registry.Lookup(call.Label)
	if !ok {
		return nil, MsgDirListReply, wire.StatusRPCHandlerError
	}
	dir, err := m.Engine.OpenDir(call.Path)
	if err != nil {
		return nil, MsgDirListReply, wire.StatusRPCHandlerError
	}
	defer dir.Close()

	var total uint32
	var entries []DirEntry
	for {
		info, valid, err := dir.ReadEntry()
		if err != nil || !valid {
			break
		}
		if total >= call.StartIdx && len(entries) < MaxDirListEntries {
			entries = append(entries, DirEntry{Name: info.Name, Size: info.Size, IsDir: info.IsDir})
		}
		total++
	}

	reply := DirListReply{Valid: true, NumEntries: total, StartIdx: call.StartIdx, Entries: entries}
	buf := make([]byte, 16+MaxDirListEntries*(1+MaxPathLen+8+1))
	n := reply.Marshal(buf)
	return buf[:n], MsgDirListReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) fileOpen(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call FileOpenCall
	if _, err := call.Unmarshal(callBytes); err != nil || call.Flags == 0 {
		return h.openReply(-1, -1), MsgFileOpenReply, wire.StatusRPCHandlerError
	}
	m, ok := h.registry.Lookup(call.Label)
	if !ok {
		return h.openReply(-1, -1), MsgFileOpenReply, wire.StatusRPCHandlerError
	}

	cap := fsapi.New(m.Engine)
	if err := cap.Open(call.Path, fsengine.OpenFlags(call.Flags)); err != nil {
		return h.openReply(-1, -1), MsgFileOpenReply, wire.StatusRPCHandlerError
	}

	info, _ := cap.Stat(call.Path)
	fd, err := h.pool.Acquire(&openHandle{label: call.Label, cap: cap, stat: info})
	if err != nil {
		cap.Close()
		return h.openReply(-1, -1), MsgFileOpenReply, wire.StatusRPCHandlerError
	}
	return h.openReply(0, int32(fd)), MsgFileOpenReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) openReply(status, fd int32) []byte {
	buf := make([]byte, 8)
	n := FileOpenReply{Status: status, FD: fd}.Marshal(buf)
	return buf[:n]
}

func (h *FilesystemHandlers) fileClose(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call FileCloseCall
	call.Unmarshal(callBytes)

	oh, ok := h.lookupFile(int(call.FD))
	if !ok {
		return nil, MsgFileCloseReply, wire.StatusRPCHandlerError
	}
	if err := oh.cap.Close(); err != nil {
		h.pool.Release(int(call.FD))
		return nil, MsgFileCloseReply, wire.StatusRPCHandlerError
	}
	if err := h.pool.Release(int(call.FD)); err != nil {
		return nil, MsgFileCloseReply, wire.StatusRPCHandlerError
	}
	return nil, MsgFileCloseReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) fileRead(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call FileReadCall
	call.Unmarshal(callBytes)

	if call.Whence > uint8(fsengine.SeekEnd) || call.ReadSize > MaxFileReadReplyLen {
		return h.readReply(-1, 0, nil), MsgFileReadReply, wire.StatusRPCHandlerError
	}
	oh, ok := h.lookupFile(int(call.FD))
	if !ok {
		return h.readReply(-1, 0, nil), MsgFileReadReply, wire.StatusRPCHandlerError
	}
	newOff, err := oh.cap.Seek(call.Offset, fsengine.Whence(call.Whence))
	if err != nil {
		return h.readReply(-1, 0, nil), MsgFileReadReply, wire.StatusRPCHandlerError
	}
	data := make([]byte, call.ReadSize)
	n, err := oh.cap.Read(data)
	if err != nil {
		return h.readReply(-1, 0, nil), MsgFileReadReply, wire.StatusRPCHandlerError
	}
	return h.readReply(int32(n), newOff, data[:n]), MsgFileReadReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) readReply(status int32, offset int64, data []byte) []byte {
	buf := make([]byte, 16+len(data))
	n := FileReadReply{Status: status, Offset: offset, Data: data}.Marshal(buf)
	return buf[:n]
}

func (h *FilesystemHandlers) fileWrite(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call FileWriteCall
	call.Unmarshal(callBytes)

	if call.Whence > uint8(fsengine.SeekEnd) {
		return h.writeReply(-1), MsgFileWriteReply, wire.StatusRPCHandlerError
	}
	oh, ok := h.lookupFile(int(call.FD))
	if !ok {
		return h.writeReply(-1), MsgFileWriteReply, wire.StatusRPCHandlerError
	}
	if _, err := oh.cap.Seek(call.Offset, fsengine.Whence(call.Whence)); err != nil {
		return h.writeReply(-1), MsgFileWriteReply, wire.StatusRPCHandlerError
	}
	n, err := oh.cap.Write(call.Data)
	if err != nil {
		return h.writeReply(-1), MsgFileWriteReply, wire.StatusRPCHandlerError
	}
	return h.writeReply(int32(n)), MsgFileWriteReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) writeReply(status int32) []byte {
	buf := make([]byte, 4)
	n := FileWriteReply{Status: status}.Marshal(buf)
	return buf[:n]
}

func (h *FilesystemHandlers) remove(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call RemoveCall
	call.Unmarshal(callBytes)

	m, ok := h.registry.Lookup(call.Label)
	if !ok {
		return h.statusReply(-1), MsgRemoveReply, wire.StatusRPCHandlerError
	}
	if err := m.Engine.Remove(call.Path); err != nil {
		return h.statusReply(-1), MsgRemoveReply, wire.StatusRPCHandlerError
	}
	return h.statusReply(0), MsgRemoveReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) statusReply(status int32) []byte {
	buf := make([]byte, 4)
	n := RemoveReply{Status: status}.Marshal(buf)
	return buf[:n]
}

// format reinitializes a mount's filesystem. Restricted to mounts
// with no outstanding open descriptors.
func (h *FilesystemHandlers) format(callBytes []byte) ([]byte, uint8, wire.Status) {
	var call FormatCall
	call.Unmarshal(callBytes)

	m, ok := h.registry.Lookup(call.Label)
	if !ok {
		return h.formatReply(-1), MsgFormatReply, wire.StatusRPCHandlerError
	}
	if h.hasOpenDescriptorsFor(call.Label) {
		return h.formatReply(-1), MsgFormatReply, wire.StatusRPCHandlerError
	}
	if err := m.Engine.Format(); err != nil {
		return h.formatReply(-1), MsgFormatReply, wire.StatusRPCHandlerError
	}
	return h.formatReply(0), MsgFormatReply, wire.StatusSuccess
}

func (h *FilesystemHandlers) formatReply(status int32) []byte {
	buf := make([]byte, 4)
	n := FormatReply{Status: status}.Marshal(buf)
	return buf[:n]
}

func (h *FilesystemHandlers) hasOpenDescriptorsFor(label string) bool {
	for fd := 0; fd < h.pool.Capacity(); fd++ {
		handle, ok := h.pool.GetInUse(fd)
		if !ok {
			continue
		}
		if oh, ok := handle.(*openHandle); ok && oh.label == label {
			return true
		}
	}
	return false
}

func (h *FilesystemHandlers) lookupFile(fd int) (*openHandle, bool) {
	handle, ok := h.pool.GetInUse(fd)
	if !ok {
		return nil, false
	}
	oh, ok := handle.(*openHandle)
	if !ok || oh.isDir {
		return nil, false
	}
	return oh, true
}

func (h *FilesystemHandlers) lookupDir(fd int) (*openHandle, bool) {
	handle, ok := h.pool.GetInUse(fd)
	if !ok {
		return nil, false
	}
	oh, ok := handle.(*openHandle)
	if !ok || !oh.isDir {
		return nil, false
	}
	return oh, true
}
