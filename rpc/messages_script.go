package rpc

import (
	"github.com/flashrpc/flashrpc/internal/constants"
	"github.com/flashrpc/flashrpc/wire"
)

// Script callset message tags.
const (
	MsgRunScriptCall uint8 = iota + 1
	MsgRunScriptReply
	MsgGetLastMessageCall
	MsgGetLastMessageReply
)

// RunScriptCall is runScript's request: {filename: string <= 64}.
type RunScriptCall struct {
	Filename string
}

func (c RunScriptCall) Marshal(buf []byte) int {
	return wire.PutString(buf, c.Filename, constants.MaxScriptFilenameLength)
}

func (c *RunScriptCall) Unmarshal(buf []byte) (int, error) {
	s, n := wire.GetString(buf)
	c.Filename = s
	return n, nil
}

// RunScriptReply is runScript's reply: {status}. 0 = enqueued,
// negative = queue-full.
type RunScriptReply struct {
	Status int32
}

func (r RunScriptReply) Marshal(buf []byte) int { return wire.PutInt32(buf, r.Status) }
func (r *RunScriptReply) Unmarshal(buf []byte) (int, error) {
	v, n := wire.GetInt32(buf)
	r.Status = v
	return n, nil
}

// GetLastMessageCall carries no fields.
type GetLastMessageCall struct{}

func (c GetLastMessageCall) Marshal(buf []byte) int             { return 0 }
func (c *GetLastMessageCall) Unmarshal(buf []byte) (int, error) { return 0, nil }

// GetLastMessageReply is getLastMessage's reply: {msg: string <= 900}.
type GetLastMessageReply struct {
	Msg string
}

func (r GetLastMessageReply) Marshal(buf []byte) int {
	return wire.PutString2(buf, r.Msg, constants.DefaultLastMessageCapacity)
}

func (r *GetLastMessageReply) Unmarshal(buf []byte) (int, error) {
	s, n := wire.GetString2(buf)
	r.Msg = s
	return n, nil
}
