//go:build linux

package dispatch

import (
	c "nativefs/internal"
	"nativefs/internal/nerr"

	"golang.org/x/sys/unix"
)

// Dir is an open directory stream. It is tied to the Thread that opened it because every
// refill borrows a buffer from that thread's pool.
type Dir struct {
	t		*Thread
	fd		int
	pending	[]string
	eof		bool
}

func (d *Dir) Fd() int {
	return d.fd
}

func (t *Thread) Opendir(path Path) (*Dir, error) {
	buf, err := t.cpath("opendir", path)
	if err != nil { return nil, err }
	defer t.pool.Release(buf)

	fd, errno := t.syscall6(unix.SYS_OPENAT, fdArg(unix.AT_FDCWD), buf.Addr(),
		unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0, 0, 0)
	if errno != 0 {
		return nil, nerr.Translate("opendir", errno, buf.Bytes())
	}
	return &Dir{t: t, fd: int(fd)}, nil
}

// Fdopendir takes ownership of dfd; Closedir will close it.
func (t *Thread) Fdopendir(dfd int) (*Dir, error) {
	var st unix.Stat_t
	if err := t.Fstat(dfd, &st); err != nil {
		return nil, nerr.FromError("fdopendir", err, nil, unix.EBADF)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return nil, nerr.Translate("fdopendir", unix.ENOTDIR, nil)
	}
	return &Dir{t: t, fd: dfd}, nil
}

// Read returns the next entry name, or nil at the end of the stream. "." and ".." are
// never returned.
func (d *Dir) Read() ([]byte, error) {
	for len(d.pending) == 0 {
		if d.eof {
			return nil, nil
		}
		if err := d.refill(); err != nil {
			return nil, err
		}
	}
	name := d.pending[0]
	d.pending = d.pending[1:]
	return []byte(name), nil
}

func (d *Dir) refill() error {
	t := d.t
	buf, err := t.pool.Acquire(c.DIRENT_BUF_SIZE)
	if err != nil { return err }
	defer t.pool.Release(buf)

	n, errno := t.syscall6(unix.SYS_GETDENTS64, fdArg(d.fd), buf.Addr(), uintptr(buf.Cap()), 0, 0, 0)
	if errno != 0 {
		return nerr.Translate("readdir", errno, nil)
	}
	if n == 0 {
		d.eof = true
		return nil
	}
	_, _, d.pending = unix.ParseDirent(buf.Raw()[:n], -1, d.pending[:0])
	return nil
}

// Rewind restarts the stream at the first entry.
func (d *Dir) Rewind() error {
	errno := d.t.invoke(func() error {
		_, err := unix.Seek(d.fd, 0, 0)
		return err
	})
	if errno != 0 {
		return nerr.Translate("rewinddir", errno, nil)
	}
	d.pending = d.pending[:0]
	d.eof = false
	return nil
}

// Closedir closes the stream and its descriptor. Closing twice is a no-op.
func (t *Thread) Closedir(d *Dir) error {
	fd := d.fd
	d.fd = c.FD_INVALID
	d.pending = nil
	if err := t.Close(fd); err != nil {
		return nerr.FromError("closedir", err, nil, unix.EBADF)
	}
	return nil
}
