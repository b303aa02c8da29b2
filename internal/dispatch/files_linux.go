//go:build linux

package dispatch

import (
	"bytes"
	"strconv"

	c "nativefs/internal"
	"nativefs/internal/nerr"

	"golang.org/x/sys/unix"
)

// Getcwd returns the current working directory.
func (t *Thread) Getcwd() ([]byte, error) {
	buf, err := t.pool.Acquire(c.PATH_MAX)
	if err != nil { return nil, err }
	defer t.pool.Release(buf)

	n, errno := t.syscall6(unix.SYS_GETCWD, buf.Addr(), uintptr(buf.Cap()), 0, 0, 0, 0)
	if errno != 0 {
		return nil, nerr.Translate("getcwd", errno, nil)
	}
	return cstring(buf.Raw()[:n]), nil
}

func (t *Thread) Dup(fd int) (int, error) {
	var nfd int
	errno := t.invoke(func() (err error) {
		nfd, err = unix.Dup(fd)
		return err
	})
	if errno != 0 {
		return -1, nerr.Translate("dup", errno, nil)
	}
	return nfd, nil
}

func (t *Thread) Open(path Path, flags int, mode uint32) (int, error) {
	buf, err := t.cpath("open", path)
	if err != nil { return -1, err }
	defer t.pool.Release(buf)

	fd, errno := t.syscall6(unix.SYS_OPENAT, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(flags), uintptr(mode), 0, 0)
	if errno != 0 {
		return -1, nerr.Translate("open", errno, buf.Bytes())
	}
	return int(fd), nil
}

// Openat resolves path relative to dfd. Relative fragments are rarely reused, so the
// name is copied every time.
func (t *Thread) Openat(dfd int, path []byte, flags int, mode uint32) (int, error) {
	buf, err := t.cbytes("openat", path)
	if err != nil { return -1, err }
	defer t.pool.Release(buf)

	fd, errno := t.syscall6(unix.SYS_OPENAT, fdArg(dfd), buf.Addr(), uintptr(flags), uintptr(mode), 0, 0)
	if errno != 0 {
		return -1, nerr.Translate("openat", errno, buf.Bytes())
	}
	return int(fd), nil
}

// Close is a no-op on FD_INVALID.
func (t *Thread) Close(fd int) error {
	if fd == c.FD_INVALID {
		return nil
	}
	errno := t.invoke(func() error { return unix.Close(fd) })
	return nerr.Translate("close", errno, nil)
}

// CloseWith closes fd and hands a failure to mapper. A nil mapper, or a mapper returning
// nil, drops the failure; otherwise the mapper's error is returned in its place.
// This is for best-effort cleanup only.
func (t *Thread) CloseWith(fd int, mapper func(error) error) error {
	err := t.Close(fd)
	if err == nil {
		return nil
	}
	if mapper == nil {
		t.log.Debug("close failure dropped", "fd", fd, "err", err)
		return nil
	}
	return mapper(err)
}

func (t *Thread) Link(existing Path, newfile Path) error {
	ebuf, err := t.cpath("link", existing)
	if err != nil { return err }
	defer t.pool.Release(ebuf)
	nwbuf, err := t.cpath("link", newfile)
	if err != nil { return err }
	defer t.pool.Release(nwbuf)

	_, errno := t.syscall6(unix.SYS_LINKAT, fdArg(unix.AT_FDCWD), ebuf.Addr(), fdArg(unix.AT_FDCWD), nwbuf.Addr(), 0, 0)
	return nerr.Translate2("link", errno, ebuf.Bytes(), nwbuf.Bytes())
}

func (t *Thread) Unlink(path Path) error {
	buf, err := t.cpath("unlink", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_UNLINKAT, fdArg(unix.AT_FDCWD), buf.Addr(), 0, 0, 0, 0)
	return nerr.Translate("unlink", errno, buf.Bytes())
}

func (t *Thread) Unlinkat(dfd int, path []byte, flag int) error {
	buf, err := t.cbytes("unlinkat", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_UNLINKAT, fdArg(dfd), buf.Addr(), uintptr(flag), 0, 0, 0)
	return nerr.Translate("unlinkat", errno, buf.Bytes())
}

func (t *Thread) Mknod(path Path, mode uint32, dev uint64) error {
	buf, err := t.cpath("mknod", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_MKNODAT, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(mode), uintptr(dev), 0, 0)
	return nerr.Translate("mknod", errno, buf.Bytes())
}

func (t *Thread) Rename(from Path, to Path) error {
	fbuf, err := t.cpath("rename", from)
	if err != nil { return err }
	defer t.pool.Release(fbuf)
	tbuf, err := t.cpath("rename", to)
	if err != nil { return err }
	defer t.pool.Release(tbuf)

	_, errno := t.syscall6(renameatTrap, fdArg(unix.AT_FDCWD), fbuf.Addr(), fdArg(unix.AT_FDCWD), tbuf.Addr(), 0, 0)
	return nerr.Translate2("rename", errno, fbuf.Bytes(), tbuf.Bytes())
}

func (t *Thread) Renameat(fromfd int, from []byte, tofd int, to []byte) error {
	fbuf, err := t.cbytes("renameat", from)
	if err != nil { return err }
	defer t.pool.Release(fbuf)
	tbuf, err := t.cbytes("renameat", to)
	if err != nil { return err }
	defer t.pool.Release(tbuf)

	_, errno := t.syscall6(renameatTrap, fdArg(fromfd), fbuf.Addr(), fdArg(tofd), tbuf.Addr(), 0, 0)
	return nerr.Translate2("renameat", errno, fbuf.Bytes(), tbuf.Bytes())
}

func (t *Thread) Mkdir(path Path, mode uint32) error {
	buf, err := t.cpath("mkdir", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_MKDIRAT, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(mode), 0, 0, 0)
	return nerr.Translate("mkdir", errno, buf.Bytes())
}

func (t *Thread) Rmdir(path Path) error {
	buf, err := t.cpath("rmdir", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_UNLINKAT, fdArg(unix.AT_FDCWD), buf.Addr(), unix.AT_REMOVEDIR, 0, 0, 0)
	return nerr.Translate("rmdir", errno, buf.Bytes())
}

// Readlink returns the link target. A target that fills the whole PATH_MAX buffer is
// reported as ENAMETOOLONG rather than silently truncated.
func (t *Thread) Readlink(path Path) ([]byte, error) {
	buf, err := t.cpath("readlink", path)
	if err != nil { return nil, err }
	defer t.pool.Release(buf)

	return t.readlinkat(unix.AT_FDCWD, buf.Addr(), buf.Bytes())
}

func (t *Thread) readlinkat(dfd int, addr uintptr, subject []byte) ([]byte, error) {
	out, err := t.pool.Acquire(c.PATH_MAX)
	if err != nil { return nil, err }
	defer t.pool.Release(out)

	n, errno := t.syscall6(unix.SYS_READLINKAT, fdArg(dfd), addr, out.Addr(), uintptr(c.PATH_MAX), 0, 0)
	if errno != 0 {
		return nil, nerr.Translate("readlink", errno, subject)
	}
	if int(n) >= c.PATH_MAX {
		return nil, nerr.Translate("readlink", unix.ENAMETOOLONG, subject)
	}
	return bytes.Clone(out.Raw()[:n]), nil
}

// Realpath resolves every symlink, "." and ".." in path. The file must exist.
// It pins the file with an O_PATH descriptor and reads the kernel's name for it back from
// /proc/self/fd.
func (t *Thread) Realpath(path Path) ([]byte, error) {
	buf, err := t.cpath("realpath", path)
	if err != nil { return nil, err }
	defer t.pool.Release(buf)

	fd, errno := t.syscall6(unix.SYS_OPENAT, fdArg(unix.AT_FDCWD), buf.Addr(), unix.O_PATH|unix.O_CLOEXEC, 0, 0, 0)
	if errno != 0 {
		return nil, nerr.Translate("realpath", errno, buf.Bytes())
	}
	defer t.CloseWith(int(fd), nil)

	proc, err := t.pool.AsNative(strconv.AppendInt([]byte("/proc/self/fd/"), int64(fd), 10))
	if err != nil { return nil, err }
	defer t.pool.Release(proc)

	return t.readlinkat(unix.AT_FDCWD, proc.Addr(), buf.Bytes())
}

// Symlink creates link pointing at target. The target is stored verbatim.
func (t *Thread) Symlink(target []byte, link Path) error {
	tbuf, err := t.cbytes("symlink", target)
	if err != nil { return err }
	defer t.pool.Release(tbuf)
	lbuf, err := t.cpath("symlink", link)
	if err != nil { return err }
	defer t.pool.Release(lbuf)

	_, errno := t.syscall6(unix.SYS_SYMLINKAT, tbuf.Addr(), fdArg(unix.AT_FDCWD), lbuf.Addr(), 0, 0, 0)
	return nerr.Translate2("symlink", errno, tbuf.Bytes(), lbuf.Bytes())
}

func cstring(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return bytes.Clone(b)
}
