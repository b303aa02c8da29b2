//go:build linux

package dispatch

import (
	"unsafe"

	"nativefs/internal/nerr"

	"golang.org/x/sys/unix"
)

func (t *Thread) Stat(path Path, st *unix.Stat_t) error {
	buf, err := t.cpath("stat", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(fstatatTrap, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(unsafe.Pointer(st)), 0, 0, 0)
	return nerr.Translate("stat", errno, buf.Bytes())
}

// StatMode is stat for best-effort file type probing: st_mode on success, 0 on any failure.
func (t *Thread) StatMode(path Path) uint32 {
	var st unix.Stat_t
	if t.Stat(path, &st) != nil {
		return 0
	}
	return st.Mode
}

func (t *Thread) Lstat(path Path, st *unix.Stat_t) error {
	buf, err := t.cpath("lstat", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(fstatatTrap, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(unsafe.Pointer(st)), unix.AT_SYMLINK_NOFOLLOW, 0, 0)
	return nerr.Translate("lstat", errno, buf.Bytes())
}

func (t *Thread) Fstat(fd int, st *unix.Stat_t) error {
	errno := t.invoke(func() error { return unix.Fstat(fd, st) })
	return nerr.Translate("fstat", errno, nil)
}

func (t *Thread) Fstatat(dfd int, path []byte, flag int, st *unix.Stat_t) error {
	buf, err := t.cbytes("fstatat", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(fstatatTrap, fdArg(dfd), buf.Addr(), uintptr(unsafe.Pointer(st)), uintptr(flag), 0, 0)
	return nerr.Translate("fstatat", errno, buf.Bytes())
}

// Statx fills stx for path; it is the only way to get at the birth time. Whether the
// kernel and file system report one shows in stx.Mask & unix.STATX_BTIME.
func (t *Thread) Statx(path Path, flags int, mask int, stx *unix.Statx_t) error {
	buf, err := t.cpath("statx", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_STATX, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(flags), uintptr(mask), uintptr(unsafe.Pointer(stx)), 0)
	return nerr.Translate("statx", errno, buf.Bytes())
}

func (t *Thread) Chown(path Path, uid int, gid int) error {
	return t.fchownat("chown", path, uid, gid, 0)
}

func (t *Thread) Lchown(path Path, uid int, gid int) error {
	return t.fchownat("lchown", path, uid, gid, unix.AT_SYMLINK_NOFOLLOW)
}

func (t *Thread) fchownat(op string, path Path, uid int, gid int, flag int) error {
	buf, err := t.cpath(op, path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_FCHOWNAT, fdArg(unix.AT_FDCWD), buf.Addr(), fdArg(uid), fdArg(gid), uintptr(flag), 0)
	return nerr.Translate(op, errno, buf.Bytes())
}

func (t *Thread) Fchown(fd int, uid int, gid int) error {
	errno := t.invoke(func() error { return unix.Fchown(fd, uid, gid) })
	return nerr.Translate("fchown", errno, nil)
}

func (t *Thread) Chmod(path Path, mode uint32) error {
	buf, err := t.cpath("chmod", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_FCHMODAT, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(mode), 0, 0, 0)
	return nerr.Translate("chmod", errno, buf.Bytes())
}

func (t *Thread) Fchmod(fd int, mode uint32) error {
	errno := t.invoke(func() error { return unix.Fchmod(fd, mode) })
	return nerr.Translate("fchmod", errno, nil)
}

// Utimes sets access and modification times of path, following symlinks.
// A field set to unix.UTIME_OMIT in Nsec is left alone.
func (t *Thread) Utimes(path Path, atime unix.Timespec, mtime unix.Timespec) error {
	return t.utimensat("utimes", path, atime, mtime, 0)
}

// Lutimes is Utimes on the link itself.
func (t *Thread) Lutimes(path Path, atime unix.Timespec, mtime unix.Timespec) error {
	return t.utimensat("lutimes", path, atime, mtime, unix.AT_SYMLINK_NOFOLLOW)
}

func (t *Thread) utimensat(op string, path Path, atime unix.Timespec, mtime unix.Timespec, flag int) error {
	buf, err := t.cpath(op, path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	ts := [2]unix.Timespec{atime, mtime}
	_, errno := t.syscall6(unix.SYS_UTIMENSAT, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(unsafe.Pointer(&ts[0])), uintptr(flag), 0, 0)
	return nerr.Translate(op, errno, buf.Bytes())
}

// Futimens sets the times of an open file with nanosecond precision.
func (t *Thread) Futimens(fd int, atime unix.Timespec, mtime unix.Timespec) error {
	ts := [2]unix.Timespec{atime, mtime}
	_, errno := t.syscall6(unix.SYS_UTIMENSAT, fdArg(fd), 0, uintptr(unsafe.Pointer(&ts[0])), 0, 0, 0)
	return nerr.Translate("futimens", errno, nil)
}

// Futimes is the coarse variant: times are rounded up to whole microseconds.
func (t *Thread) Futimes(fd int, atime unix.Timespec, mtime unix.Timespec) error {
	tv := []unix.Timeval{
		unix.NsecToTimeval(unix.TimespecToNsec(atime)),
		unix.NsecToTimeval(unix.TimespecToNsec(mtime)),
	}
	errno := t.invoke(func() error { return unix.Futimes(fd, tv) })
	return nerr.Translate("futimes", errno, nil)
}

func (t *Thread) Access(path Path, amode uint32) error {
	buf, err := t.cpath("access", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_FACCESSAT, fdArg(unix.AT_FDCWD), buf.Addr(), uintptr(amode), 0, 0, 0)
	return nerr.Translate("access", errno, buf.Bytes())
}

// Exists reports whether path can be reached. Every failure, whatever its cause, is false.
func (t *Thread) Exists(path Path) bool {
	return t.Access(path, unix.F_OK) == nil
}

func (t *Thread) Statfs(path Path, st *unix.Statfs_t) error {
	buf, err := t.cpath("statfs", path)
	if err != nil { return err }
	defer t.pool.Release(buf)

	_, errno := t.syscall6(unix.SYS_STATFS, buf.Addr(), uintptr(unsafe.Pointer(st)), 0, 0, 0, 0)
	return nerr.Translate("statfs", errno, buf.Bytes())
}

// Strerror is the message a *nerr.Error carries for errno.
func (t *Thread) Strerror(errno unix.Errno) []byte {
	return nerr.Strerror(errno)
}
