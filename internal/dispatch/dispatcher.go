// Package dispatch issues Unix file-system calls on behalf of a file-system provider.
//
// Every call follows the same sequence: marshal byte-string arguments into native
// buffers, open the blocking gate, invoke the kernel, close the gate, translate a failure
// into a *nerr.Error, release the buffers. Buffers are released on every path.
//
// A Dispatcher is shared and immutable. Per-thread state lives in a Thread, obtained
// with Attach, which must only ever be used by the goroutine that attached it.
package dispatch

import (
	"bytes"
	"log/slog"
	"runtime"

	"nativefs/internal/caps"
	"nativefs/internal/config"
	"nativefs/internal/gate"
	"nativefs/internal/iomgr"
	"nativefs/internal/nbuf"
	"nativefs/internal/nerr"

	"golang.org/x/sys/unix"
)

// Path is the collaborator's path object. Its identity (the interface value itself) is the
// owner tag used to skip re-copying the same path into a native buffer. Implementations
// should not change their bytes; ones that are not comparable (slice types, say) work but
// are copied on every call.
type Path interface {
	Bytes() []byte
}

// UnixPath is a minimal Path. Use the pointer; two UnixPaths with equal bytes are still
// different owners.
type UnixPath struct {
	b []byte
}

func NewPath(s string) *UnixPath {
	return &UnixPath{b: []byte(s)}
}

func NewPathBytes(b []byte) *UnixPath {
	return &UnixPath{b: bytes.Clone(b)}
}

func (p *UnixPath) Bytes() []byte	{ return p.b }
func (p *UnixPath) String() string	{ return string(p.b) }

// Syscaller issues the raw system call. The real one traps into the kernel; tests swap in
// one that fails on purpose.
type Syscaller interface {
	Syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (r1, r2 uintptr, errno unix.Errno)
}

type realOS struct{}

func (realOS) Syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (uintptr, uintptr, unix.Errno) {
	return unix.Syscall6(trap, a1, a2, a3, a4, a5, a6)
}

var _ Syscaller = realOS{}

// submitter is the part of iomgr.IoMgr a Thread uses.
type submitter interface {
	Do(op *iomgr.Op) (int, unix.Errno)
	Close()
}

type Dispatcher struct {
	log		*slog.Logger
	caps	caps.Capabilities
	coord	gate.Coordinator
	cfg		config.Config
	sys		Syscaller
}

type Option func(*Dispatcher)

func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

func WithCoordinator(coord gate.Coordinator) Option {
	return func(d *Dispatcher) { d.coord = coord }
}

func WithConfig(cfg config.Config) Option {
	return func(d *Dispatcher) { d.cfg = cfg }
}

func WithSyscaller(sys Syscaller) Option {
	return func(d *Dispatcher) { d.sys = sys }
}

// New builds a Dispatcher around an already probed capability set.
func New(cs caps.Capabilities, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:	slog.Default(),
		caps:	cs,
		coord:	gate.Nop{},
		cfg:	config.Defaults(),
		sys:	realOS{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("src", "Dispatch")

	if len(d.cfg.Disable) > 0 {
		m, err := caps.ParseNames(d.cfg.Disable)
		if err != nil {
			d.log.Warn("ignoring disable list", "err", err)
		} else {
			d.caps = d.caps.Without(m)
		}
	}
	d.log.Debug("New", "caps", d.caps)
	return d
}

func (d *Dispatcher) Caps() caps.Capabilities {
	return d.caps
}

// Thread is the per-thread half of the dispatcher: its own buffer pool, its own gate and,
// when enabled, its own io_uring. None of it is safe for concurrent use.
type Thread struct {
	d		*Dispatcher
	log		*slog.Logger
	pool	*nbuf.Pool
	gate	*gate.Gate
	sys		Syscaller
	ring	submitter
	op		iomgr.Op
	locked	bool
}

// Attach creates the calling goroutine's Thread. With lock_os_thread set the goroutine
// stays wired to its OS thread until Detach.
func (d *Dispatcher) Attach() *Thread {
	t := &Thread{
		d:		d,
		log:	d.log,
		sys:	d.sys,
		gate:	gate.New(d.coord),
		pool:	nbuf.NewPool(nbuf.Options{
			Log:				d.log,
			FreeListDepth:		d.cfg.Buffers.FreeListDepth,
			VerifyOwnerTags:	d.cfg.Buffers.VerifyOwnerTags,
		}),
	}

	if d.cfg.LockOSThread {
		runtime.LockOSThread()
		t.locked = true
	}

	if d.cfg.Uring.Enabled && d.caps.UringSupported() {
		ring, err := iomgr.CreateIoMgr(d.cfg.Uring.Entries, d.log)
		if err != nil {
			t.log.Warn("falling back to pread/pwrite", "err", err)
		} else {
			t.ring = ring
		}
	}
	return t
}

// Detach frees the thread's cached native memory and its ring. The Thread must not be
// used afterwards.
func (t *Thread) Detach() error {
	if t.ring != nil {
		t.ring.Close()
		t.ring = nil
	}
	err := t.pool.Close()
	if t.locked {
		runtime.UnlockOSThread()
		t.locked = false
	}
	return err
}

func (t *Thread) Caps() caps.Capabilities {
	return t.d.caps
}

func (t *Thread) PoolStats() nbuf.Stats {
	return t.pool.Stats()
}

// UsesRing reports whether positional I/O goes through io_uring on this thread.
func (t *Thread) UsesRing() bool {
	return t.ring != nil
}

// cpath marshals a provider path, reusing the last buffer if it still holds this path.
func (t *Thread) cpath(op string, p Path) (*nbuf.Buffer, error) {
	bs := p.Bytes()
	if bytes.IndexByte(bs, 0) >= 0 {
		return nil, nerr.Translate(op, unix.EINVAL, bs)
	}
	return t.pool.AcquireFor(p, bs)
}

// cbytes marshals a raw byte string (relative names, xattr names) without an owner tag.
func (t *Thread) cbytes(op string, bs []byte) (*nbuf.Buffer, error) {
	if bytes.IndexByte(bs, 0) >= 0 {
		return nil, nerr.Translate(op, unix.EINVAL, bs)
	}
	return t.pool.AsNative(bs)
}

// syscall6 is the single place a raw system call is issued, inside the blocking bracket.
//
//go:uintptrescapes
func (t *Thread) syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (uintptr, unix.Errno) {
	defer t.gate.End(t.gate.Begin())
	r, _, errno := t.sys.Syscall6(trap, a1, a2, a3, a4, a5, a6)
	return r, errno
}

// invoke brackets a call made through an x/sys wrapper.
func (t *Thread) invoke(fn func() error) unix.Errno {
	defer t.gate.End(t.gate.Begin())
	err := fn()
	if err == nil {
		return 0
	}
	if errno, ok := nerr.Errno(err); ok {
		return errno
	}
	return unix.EIO
}

func fdArg(fd int) uintptr {
	return uintptr(fd)
}

// blocking brackets a call that fails with something other than an errno.
func (t *Thread) blocking(fn func() error) error {
	defer t.gate.End(t.gate.Begin())
	return fn()
}
