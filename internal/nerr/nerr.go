// Package nerr turns a failed native call into a structured error.
//
// It keeps the raw errno and never decides what the failure means; mapping ENOENT to
// "no such file" or EACCES to "access denied" is the caller's job.
package nerr

import (
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

// Error is the structured form of a failed native call.
type Error struct {
	Op		string
	Errno	unix.Errno
	Msg		string
	Path	[]byte // subject of the call, if any
	Path2	[]byte // second path for link/rename/symlink
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Path != nil {
		b.WriteByte(' ')
		b.Write(e.Path)
	}
	if e.Path2 != nil {
		b.WriteString(" -> ")
		b.Write(e.Path2)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

// Unwrap exposes the errno so errors.Is(err, unix.ENOENT) works.
func (e *Error) Unwrap() error {
	return e.Errno
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Errno == e.Errno && (t.Op == "" || t.Op == e.Op)
	}
	return false
}

func Translate(op string, errno unix.Errno, path []byte) error {
	return Translate2(op, errno, path, nil)
}

// Translate2 returns nil for errno 0. Path bytes are copied because they usually live in a
// native buffer that goes back to the pool right after.
func Translate2(op string, errno unix.Errno, path []byte, path2 []byte) error {
	if errno == 0 {
		return nil
	}
	return &Error{
		Op:		op,
		Errno:	errno,
		Msg:	errno.Error(),
		Path:	clone(path),
		Path2:	clone(path2),
	}
}

// FromError folds an error returned by a Go wrapper into an *Error. Anything that does
// not carry an errno becomes fallback, keeping the original message.
func FromError(op string, err error, path []byte, fallback unix.Errno) error {
	if err == nil {
		return nil
	}
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return Translate(op, errno, path)
	}
	return &Error{
		Op:		op,
		Errno:	fallback,
		Msg:	err.Error(),
		Path:	clone(path),
	}
}

// Errno digs the raw code out of any error in the chain.
func Errno(err error) (unix.Errno, bool) {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}

// Strerror is the message Translate would attach for errno.
func Strerror(errno unix.Errno) []byte {
	return []byte(errno.Error())
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	if i := indexNul(b); i >= 0 {
		b = b[:i]
	}
	return append([]byte{}, b...)
}

func indexNul(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
