//go:build linux

package dispatch

import (
	"unsafe"

	"nativefs/internal/nerr"

	"golang.org/x/sys/unix"
)

// Attribute names are copied into native buffers; values are read and written in place.
// A zero-length dest asks the kernel for the size only.

func (t *Thread) Fgetxattr(fd int, name []byte, dest []byte) (int, error) {
	abuf, err := t.cbytes("fgetxattr", name)
	if err != nil { return 0, err }
	defer t.pool.Release(abuf)

	n, errno := t.syscall6(unix.SYS_FGETXATTR, fdArg(fd), abuf.Addr(),
		uintptr(bufPtr(dest)), uintptr(len(dest)), 0, 0)
	if errno != 0 {
		return 0, nerr.Translate("fgetxattr", errno, abuf.Bytes())
	}
	return int(n), nil
}

// Fsetxattr creates or replaces name.
func (t *Thread) Fsetxattr(fd int, name []byte, value []byte) error {
	abuf, err := t.cbytes("fsetxattr", name)
	if err != nil { return err }
	defer t.pool.Release(abuf)

	_, errno := t.syscall6(unix.SYS_FSETXATTR, fdArg(fd), abuf.Addr(),
		uintptr(bufPtr(value)), uintptr(len(value)), 0, 0)
	return nerr.Translate("fsetxattr", errno, abuf.Bytes())
}

func (t *Thread) Fremovexattr(fd int, name []byte) error {
	abuf, err := t.cbytes("fremovexattr", name)
	if err != nil { return err }
	defer t.pool.Release(abuf)

	_, errno := t.syscall6(unix.SYS_FREMOVEXATTR, fdArg(fd), abuf.Addr(), 0, 0, 0, 0)
	return nerr.Translate("fremovexattr", errno, abuf.Bytes())
}

// Flistxattr fills dest with NUL-separated names; util.SplitNul takes them apart.
func (t *Thread) Flistxattr(fd int, dest []byte) (int, error) {
	n, errno := t.syscall6(unix.SYS_FLISTXATTR, fdArg(fd), uintptr(bufPtr(dest)), uintptr(len(dest)), 0, 0, 0)
	if errno != 0 {
		return 0, nerr.Translate("flistxattr", errno, nil)
	}
	return int(n), nil
}

func bufPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
