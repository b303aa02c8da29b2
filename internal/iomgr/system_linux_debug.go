//go:build linux

package iomgr

import (
	"fmt"
	"strings"
)

func (o *Op) String() string {
	if o == nil {
		return "<nil>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Op | Opcode: %v, Fd: %d, Count: %d, Seen: %d, Res: %d, Sync: %v\n",
		o.Opcode, o.Fd, o.Count, o.seen, o.Res, o.Sync)

	switch o.Opcode {
	case OpWrite, OpRead:
		for i := range min(OP_MAX_OPS, o.Count) {
			var d string
			if i + 1 == o.seen {
				d = ">"
			} else {
				d = "|"
			}
			off := fmt.Sprintf("0x%08x", o.Offs[i])
			if o.Offs[i] == CUR_POS {
				off = "cur       "
			}
			fmt.Fprintf(&b, "   %s [%02d] %-9s [ Buf: @0x%x | Len: 0x%08x | Off: %s ]\n",
				d, i, strings.ToUpper(o.Opcode.String()), o.Bufs[i], o.Lens[i], off)
		}
		if o.Opcode == OpWrite && o.Sync {
			var d string
			if o.seen > o.Count {
				d = ">"
			} else {
				d = "|"
			}
			fmt.Fprintf(&b, "   %s [%02d] FSYNC     [ ]\n", d, min(OP_MAX_OPS, o.Count))
		}
	case OpSync:
		fmt.Fprintf(&b, "   > [%02d] FSYNC     [ ]\n", 0)
	}

	return b.String()
}
