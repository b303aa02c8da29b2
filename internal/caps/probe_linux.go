//go:build linux

package caps

import (
	"log/slog"

	"github.com/aethne0/giouring"
	"golang.org/x/sys/unix"
)

const PROBE_RING_ENTRIES = 0x02

// Probe asks the kernel which optional calls it implements. A call is considered present
// when invoking it against an invalid descriptor fails with anything other than ENOSYS.
func Probe(log *slog.Logger) Capabilities {
	log = log.With("src", "Caps")
	var m Mask

	if fd, err := unix.Openat(unix.AT_FDCWD, "/", unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0); err == nil {
		unix.Close(fd)
		m |= SupportsOpenat
	} else if err != unix.ENOSYS {
		m |= SupportsOpenat
	}

	// x/sys futimes goes through /proc/self/fd
	if unix.Access("/proc/self/fd", unix.F_OK) == nil {
		m |= SupportsFutimes
	}

	_, _, errno := unix.Syscall6(unix.SYS_UTIMENSAT, ^uintptr(0), 0, 0, 0, 0, 0)
	if errno != unix.ENOSYS {
		m |= SupportsFutimens | SupportsLutimes
	}

	if _, err := unix.Fgetxattr(-1, "user.probe", nil); err != unix.ENOSYS && err != unix.ENOTSUP {
		m |= SupportsXattr
	}

	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, "/", 0, unix.STATX_BTIME, &stx); err == nil && stx.Mask&unix.STATX_BTIME != 0 {
		m |= SupportsBirthtime
	}

	if ring, err := giouring.CreateRing(PROBE_RING_ENTRIES); err == nil {
		ring.QueueExit()
		m |= SupportsUring
	} else {
		log.Debug("io_uring unavailable", "err", err)
	}

	c := FromMask(m)
	log.Debug("Probe", "caps", c)
	return c
}
