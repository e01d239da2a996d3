package flashrpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flashrpc/flashrpc/wire"
)

// Error represents a structured appliance error carrying the context
// an operator needs to correlate a failure with a mount, a
// descriptor, and the RPC status it produced.
type Error struct {
	Op     string      // operation that failed (e.g. "fileopen", "runScript")
	Label  string      // mount label ("" if not applicable)
	FD     int32        // descriptor (-1 if not applicable)
	Code   ErrorCode   // high-level error category
	Status wire.Status // RPC status this error maps to, if any
	Msg    string      // human-readable message
	Inner  error       // wrapped error
}

func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Label != "" {
		parts = append(parts, fmt.Sprintf("mount=%s", e.Label))
	}
	if e.FD >= 0 {
		parts = append(parts, fmt.Sprintf("fd=%d", e.FD))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("flashrpc: %s (%s)", msg, strings.Join(parts, " "))
	}
	return fmt.Sprintf("flashrpc: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is a high-level error category, independent of the exact
// RPC status or mount involved.
type ErrorCode string

const (
	ErrCodeMountNotFound       ErrorCode = "mount not found"
	ErrCodeDescriptorExhausted ErrorCode = "descriptor pool exhausted"
	ErrCodeDescriptorNotInUse  ErrorCode = "descriptor not in use"
	ErrCodeInvalidArgument     ErrorCode = "invalid argument"
	ErrCodeIOError             ErrorCode = "io error"
	ErrCodeNotExist            ErrorCode = "no such file or directory"
	ErrCodeExist               ErrorCode = "file exists"
	ErrCodeQueueFull           ErrorCode = "script queue full"
	ErrCodeScriptFailed        ErrorCode = "script run failed"
)

// NewError creates a structured error with no mount/descriptor context.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, FD: -1, Code: code, Msg: msg}
}

// NewMountError creates a structured error scoped to a mount label.
func NewMountError(op, label string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Label: label, FD: -1, Code: code, Msg: msg}
}

// NewDescriptorError creates a structured error scoped to a descriptor.
func NewDescriptorError(op string, fd int32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, FD: fd, Code: code, Msg: msg}
}

// WrapError wraps inner with operation context, preserving an existing
// structured error's fields if inner already is one.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if fe, ok := inner.(*Error); ok {
		return &Error{
			Op: op, Label: fe.Label, FD: fe.FD, Code: fe.Code,
			Status: fe.Status, Msg: fe.Msg, Inner: fe.Inner,
		}
	}
	return &Error{Op: op, FD: -1, Code: ErrCodeIOError, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a structured Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}
