// Package kerr defines the closed set of kernel result codes.
package kerr

import "errors"

// Code is a kernel result code. Every non-OK code is usable as an error.
type Code uint8

const (
	OK Code = iota
	Error
	Timeout
	NoMemory
	InvalidParam
	Busy
	Deadlock
	StackOverflow
	MemCorrupt
	NotImplemented
	Deleted
	NotFound
	Exists
	Corrupted
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Error:
		return "error"
	case Timeout:
		return "timeout"
	case NoMemory:
		return "no memory"
	case InvalidParam:
		return "invalid parameter"
	case Busy:
		return "resource busy"
	case Deadlock:
		return "deadlock"
	case StackOverflow:
		return "stack overflow"
	case MemCorrupt:
		return "memory corruption"
	case NotImplemented:
		return "not implemented"
	case Deleted:
		return "deleted"
	case NotFound:
		return "not found"
	case Exists:
		return "already exists"
	case Corrupted:
		return "corrupted"
	default:
		return "unknown"
	}
}

func (c Code) Error() string { return c.String() }

// Err returns nil for OK and c otherwise.
func (c Code) Err() error {
	if c == OK {
		return nil
	}
	return c
}

// Of extracts the code carried by err. A nil error is OK; an error that
// does not wrap a Code is Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
