//go:build linux

package iomgr

import (
	"errors"
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/aethne0/giouring"
	"github.com/negrel/assert"
	"golang.org/x/sys/unix"
)

// An IoMgr is a thread-owned io_uring used for positional reads, writes and fsync.
// Unlike a shared ring with its own reaper goroutine, every Do submits and reaps on the
// calling thread, so the caller's buffers only have to stay put for the duration of the
// call and no completion ever outlives it.

const OP_MAX_OPS	= 24
const CUR_POS		= ^uint64(0) // offset -1: use and advance the file position

var (
	ErrTooManyOps 	= errors.New("iomgr: op holds too many buffers")
)

type IoMgr struct {
	log		*slog.Logger
	ring	*giouring.Ring
	entries	uint32
}

func CreateIoMgr(entries uint32, log *slog.Logger) (*IoMgr, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("src", "IoMgr")

	ring, err := giouring.CreateRing(entries)
	if err != nil {
		log.Warn("CreateRing", "entries", entries, "err", err)
		return nil, err
	}

	return &IoMgr{
		log:		log,
		ring:		ring,
		entries:	entries,
	}, nil
}

func (m *IoMgr) Close() {
	m.ring.QueueExit()
}

type OpCode uint16
const (
	OpNop 	OpCode = iota
	OpWrite
	OpRead
	OpSync
)

func (o OpCode) String() string {
	switch o {
	case OpNop:		return "nop"
	case OpWrite:	return "write"
	case OpRead:	return "read"
	case OpSync:	return "fsync"
	}
	return "invalid"
}

// Op is a chain of linked SQEs against one descriptor: up to OP_MAX_OPS buffers,
// optionally followed by an fsync when Sync is set on a write.
type Op struct {
	Fd		int
	Bufs	[OP_MAX_OPS]uintptr
	Lens	[OP_MAX_OPS]uint32
	Offs	[OP_MAX_OPS]uint64
	Count	uint16

	seen		uint16
	cancelled	uint16

	Res		int32 // total bytes, or -errno of the first failing entry
	Opcode	OpCode
	Sync	bool
}

func (op *Op) Reset(opcode OpCode, fd int) {
	*op = Op{Opcode: opcode, Fd: fd}
}

// AddSlice appends buf at off. buf must not be resized or freed until Do returns.
func (op *Op) AddSlice(buf []byte, off uint64) error {
	if op.Count >= OP_MAX_OPS { return ErrTooManyOps }
	var base uintptr
	if len(buf) > 0 {
		base = uintptr(unsafe.Pointer(&buf[0]))
	}
	op.Bufs[op.Count] = base
	op.Lens[op.Count] = uint32(len(buf))
	op.Offs[op.Count] = off
	op.Count++
	return nil
}

func (op *Op) entries() uint16 {
	n := op.Count
	if op.Opcode == OpSync {
		return 1
	}
	if op.Opcode == OpWrite && op.Sync {
		n++
	}
	return n
}

// Do runs op to completion on the calling thread. The returned errno is the first failure
// in the chain; entries linked after it come back cancelled and are ignored.
// A short transfer also breaks the link: Do then returns the bytes that did move together
// with ECANCELED, since the rest of the chain (a trailing fsync included) never ran.
func (m *IoMgr) Do(op *Op) (int, unix.Errno) {
	n := op.entries()
	if n == 0 { return 0, 0 }
	if uint32(n) > m.entries { return 0, unix.E2BIG }

	op.seen = 0
	op.cancelled = 0
	op.Res = 0
	if errno := m.prepSQEs(op); errno != 0 {
		return 0, errno
	}

	for op.seen < n {
		_, err := m.ring.SubmitAndWait(1)
		if err != nil && err != unix.ETIME && err != unix.EINTR {
			m.log.Error("Submit", "err", err, "op", op.Opcode)
			return 0, errnoOf(err)
		}
		m.reap(op)
	}

	runtime.KeepAlive(op)
	if op.Res < 0 {
		return 0, unix.Errno(-op.Res)
	}
	if op.cancelled > 0 {
		return int(op.Res), unix.ECANCELED
	}
	return int(op.Res), 0
}

func (m *IoMgr) prepSQEs(op *Op) unix.Errno {
	tag := uint64(uintptr(unsafe.Pointer(op)))

	switch op.Opcode {
	case OpNop:
		for i := range op.Count {
			sqe := m.ring.GetSQE()
			if sqe == nil { return m.full(op) }
			sqe.PrepareNop()
			sqe.UserData = tag
			if i < op.Count - 1 { sqe.Flags |= giouring.SqeIOLink }
		}

	case OpWrite:
		for i := range op.Count {
			sqe := m.ring.GetSQE()
			if sqe == nil { return m.full(op) }
			sqe.PrepareWrite(op.Fd, op.Bufs[i], op.Lens[i], op.Offs[i])
			sqe.UserData = tag
			if op.Sync || i < op.Count - 1 { sqe.Flags |= giouring.SqeIOLink }
		}
		if op.Sync {
			sqe := m.ring.GetSQE()
			if sqe == nil { return m.full(op) }
			sqe.PrepareFsync(op.Fd, 0)
			sqe.UserData = tag
		}

	case OpRead:
		for i := range op.Count {
			sqe := m.ring.GetSQE()
			if sqe == nil { return m.full(op) }
			sqe.PrepareRead(op.Fd, op.Bufs[i], op.Lens[i], op.Offs[i])
			sqe.UserData = tag
			if i < op.Count - 1 { sqe.Flags |= giouring.SqeIOLink }
		}

	case OpSync:
		sqe := m.ring.GetSQE()
		if sqe == nil { return m.full(op) }
		sqe.PrepareFsync(op.Fd, 0)
		sqe.UserData = tag

	default:
		m.log.Warn("Invalid opcode", "opcode", op.Opcode)
		return unix.EINVAL
	}
	return 0
}

// Do never leaves entries behind, so this only trips if the ring is shared by mistake.
func (m *IoMgr) full(op *Op) unix.Errno {
	m.log.Warn("submission queue full", "op", op)
	return unix.EBUSY
}

func (m *IoMgr) reap(op *Op) {
	for {
		cqe, err := m.ring.PeekCQE()
		if err == unix.EAGAIN || err == unix.EINTR || err == unix.ETIME {
			return
		} else if err != nil {
			m.log.Error("Peek cqe fatal error", "err", err)
			panic("Something wrong with your IO_URING!")
		}
		if cqe == nil {
			return
		}

		assert.Equal(cqe.UserData, uint64(uintptr(unsafe.Pointer(op))), "completion for a foreign op")
		op.seen++
		switch {
		case op.Res < 0:
			// first failure already recorded
		case cqe.Res == -int32(unix.ECANCELED):
			// a short transfer earlier in the chain broke the link
			op.cancelled++
		case cqe.Res < 0:
			op.Res = cqe.Res
		default:
			op.Res += cqe.Res
		}
		m.ring.CQESeen(cqe)
	}
}

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return unix.EIO
}
