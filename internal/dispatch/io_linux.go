//go:build linux

package dispatch

import (
	"runtime"

	"nativefs/internal/iomgr"
	"nativefs/internal/nerr"

	"golang.org/x/sys/unix"
)

// A single transfer never asks for more than this; callers loop on short counts anyway.
const maxTransfer = 1 << 30

func clampTransfer(p []byte) []byte {
	if len(p) > maxTransfer {
		return p[:maxTransfer]
	}
	return p
}

// Read issues one read(2). A zero-length p returns 0 without entering the kernel.
func (t *Thread) Read(fd int, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	p = clampTransfer(p)
	var n int
	errno := t.invoke(func() (err error) {
		n, err = unix.Read(fd, p)
		return err
	})
	if errno != 0 {
		return 0, nerr.Translate("read", errno, nil)
	}
	return n, nil
}

// Write issues one write(2) and may write less than len(p).
func (t *Thread) Write(fd int, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	p = clampTransfer(p)
	var n int
	errno := t.invoke(func() (err error) {
		n, err = unix.Write(fd, p)
		return err
	})
	if errno != 0 {
		return 0, nerr.Translate("write", errno, nil)
	}
	return n, nil
}

func (t *Thread) Lseek(fd int, off int64, whence int) (int64, error) {
	var pos int64
	errno := t.invoke(func() (err error) {
		pos, err = unix.Seek(fd, off, whence)
		return err
	})
	if errno != 0 {
		return -1, nerr.Translate("lseek", errno, nil)
	}
	return pos, nil
}

// Pread reads at off without moving the file position. It goes through the thread's ring
// when one is attached.
func (t *Thread) Pread(fd int, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	p = clampTransfer(p)
	if t.ring != nil {
		n, errno := t.ringIO(iomgr.OpRead, fd, p, off, false)
		return ringResult("pread", n, errno)
	}
	var n int
	errno := t.invoke(func() (err error) {
		n, err = unix.Pread(fd, p, off)
		return err
	})
	if errno != 0 {
		return 0, nerr.Translate("pread", errno, nil)
	}
	return n, nil
}

func (t *Thread) Pwrite(fd int, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	p = clampTransfer(p)
	if t.ring != nil {
		n, errno := t.ringIO(iomgr.OpWrite, fd, p, off, false)
		return ringResult("pwrite", n, errno)
	}
	var n int
	errno := t.invoke(func() (err error) {
		n, err = unix.Pwrite(fd, p, off)
		return err
	})
	if errno != 0 {
		return 0, nerr.Translate("pwrite", errno, nil)
	}
	return n, nil
}

func (t *Thread) Fsync(fd int) error {
	if t.ring != nil {
		_, errno := t.ringIO(iomgr.OpSync, fd, nil, 0, false)
		return nerr.Translate("fsync", errno, nil)
	}
	errno := t.invoke(func() error { return unix.Fsync(fd) })
	return nerr.Translate("fsync", errno, nil)
}

// PwriteSync writes p at off and fsyncs the file as one linked submission. Without a ring
// it is Pwrite followed by Fsync.
func (t *Thread) PwriteSync(fd int, p []byte, off int64) (int, error) {
	if t.ring != nil && len(p) > 0 {
		n, errno := t.ringIO(iomgr.OpWrite, fd, clampTransfer(p), off, true)
		if errno == unix.ECANCELED {
			// short write: the linked fsync was cancelled, so issue it on its own
			return n, t.Fsync(fd)
		}
		return ringResult("pwrite", n, errno)
	}
	n, err := t.Pwrite(fd, p, off)
	if err != nil { return n, err }
	return n, t.Fsync(fd)
}

func (t *Thread) ringIO(opcode iomgr.OpCode, fd int, p []byte, off int64, sync bool) (int, unix.Errno) {
	op := &t.op
	op.Reset(opcode, fd)
	op.Sync = sync
	if opcode != iomgr.OpSync {
		if err := op.AddSlice(p, uint64(off)); err != nil {
			return 0, unix.EINVAL
		}
	}

	defer t.gate.End(t.gate.Begin())
	n, errno := t.ring.Do(op)
	runtime.KeepAlive(p)
	return n, errno
}

func ringResult(name string, n int, errno unix.Errno) (int, error) {
	if errno != 0 {
		return 0, nerr.Translate(name, errno, nil)
	}
	return n, nil
}
