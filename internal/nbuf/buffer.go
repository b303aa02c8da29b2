package nbuf

import (
	"unsafe"
)

// Buffer is a fixed-capacity region of native memory owned by one thread's Pool.
// Its content survives Release so that the next AcquireFor with the same owner can skip
// the copy.
type Buffer struct {
	raw		[]byte
	class	int // -1 for oversize regions that are never cached
	n		int // bytes written by the last fill, terminator excluded

	owner	any
	sum		uint64 // xxhash of raw[:n], only kept when tag verification is on

	pooled	bool
}

func (b *Buffer) Addr() uintptr {
	return uintptr(unsafe.Pointer(&b.raw[0]))
}

func (b *Buffer) Ptr() *byte {
	return &b.raw[0]
}

func (b *Buffer) Cap() int {
	return len(b.raw)
}

// Raw is the whole region, for calls that write into the buffer.
func (b *Buffer) Raw() []byte {
	return b.raw
}

// Bytes is the content of the last fill, terminator excluded.
func (b *Buffer) Bytes() []byte {
	return b.raw[:b.n]
}

func (b *Buffer) Owner() any {
	return b.owner
}

func (b *Buffer) Class() int {
	return b.class
}
