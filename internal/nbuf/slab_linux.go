//go:build linux

package nbuf

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

const MMAP_MODE	= unix.MAP_ANON  | unix.MAP_PRIVATE
const MMAP_PROT	= unix.PROT_READ | unix.PROT_WRITE

// Anonymous private mapping, page aligned and outside the Go heap, so its address can be
// handed to the kernel as-is and stays put for as long as it is mapped.
func AllocSlab(size int) ([]byte, error) {
	raw, err := unix.Mmap(-1, 0, size, MMAP_PROT, MMAP_MODE)
	if err != nil {
		slog.Error("AllocSlab", "size", size, "err", err)
	}
	return raw, err
}

func DeallocSlab(raw []byte) error {
	err := unix.Munmap(raw)
	if err != nil {
		slog.Error("DeallocSlab", "err", err)
	}
	return err
}
