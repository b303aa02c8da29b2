// Package nbuf is a per-thread cache of native scratch memory used to hand byte strings
// (paths, attribute names) to the kernel as NUL-terminated C strings.
//
// A Pool belongs to exactly one thread. Nothing in here locks.
package nbuf

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	c "nativefs/internal"
	"nativefs/internal/util"

	"github.com/cespare/xxhash"
	"github.com/negrel/assert"
)

var (
	ErrAlloc = errors.New("nbuf: cannot allocate native memory")
)

type Options struct {
	Log				*slog.Logger
	FreeListDepth	int
	// Re-hash a tagged buffer before short-circuiting on it, so an owner whose bytes
	// changed since the last fill gets a fresh copy instead of stale content.
	VerifyOwnerTags	bool
}

type Stats struct {
	Allocs	uint64 // regions mapped
	Frees	uint64 // regions unmapped
	Hits	uint64 // AcquireFor calls that skipped the copy
	Copies	uint64 // fills
	Cached	int    // buffers currently held by the pool
}

type Pool struct {
	log		*slog.Logger
	free	[c.NUM_CLASSES]util.Queue[*Buffer]
	mru		*Buffer // most recently released
	verify	bool
	stats	Stats

	alloc	func(int) ([]byte, error)
	dealloc	func([]byte) error
}

func NewPool(opts Options) *Pool {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	depth := opts.FreeListDepth
	if depth <= 0 {
		depth = c.FREE_LIST_DEPTH
	}

	p := &Pool{
		log:		log.With("src", "Pool"),
		verify:		opts.VerifyOwnerTags,
		alloc:		AllocSlab,
		dealloc:	DeallocSlab,
	}
	for k := range p.free {
		p.free[k] = util.CreateQueue[*Buffer](depth)
	}
	return p
}

// Acquire returns a buffer with room for sizeHint bytes plus a terminator. The buffer
// carries no owner tag and its content is whatever the previous user left behind.
func (p *Pool) Acquire(sizeHint int) (*Buffer, error) {
	if sizeHint < 0 {
		sizeHint = 0
	}
	need := sizeHint + c.LEN_NUL
	class := c.ClassFor(need)

	b := p.take(class)
	if b == nil {
		var err error
		b, err = p.allocate(class, need)
		if err != nil { return nil, err }
	}

	b.owner = nil
	b.n = 0
	b.pooled = false

	assert.GreaterOrEqual(b.Cap(), need, "buffer smaller than requested")
	return b, nil
}

// AcquireFor returns a buffer holding bs followed by a NUL. If the most recently released
// buffer is still tagged with owner it is handed back untouched.
//
// A nil or non-comparable owner never short-circuits and leaves the buffer untagged.
func (p *Pool) AcquireFor(owner any, bs []byte) (*Buffer, error) {
	if owner != nil && !reflect.ValueOf(owner).Comparable() {
		owner = nil
	}
	if owner != nil && p.mru != nil && p.mru.owner == owner {
		b := p.mru
		if !p.verify || b.sum == xxhash.Sum64(bs) {
			p.mru = nil
			b.pooled = false
			p.stats.Hits++
			return b, nil
		}
		p.log.Warn("owner bytes changed since last fill", "owner", fmt.Sprintf("%p", owner))
	}

	b, err := p.Acquire(len(bs))
	if err != nil { return nil, err }
	p.fill(b, bs)
	b.owner = owner
	return b, nil
}

// AsNative copies bs plus a NUL into an untagged buffer.
func (p *Pool) AsNative(bs []byte) (*Buffer, error) {
	b, err := p.Acquire(len(bs))
	if err != nil { return nil, err }
	p.fill(b, bs)
	return b, nil
}

// Release returns b to the pool. Content and owner tag are left as they are.
func (p *Pool) Release(b *Buffer) {
	if b == nil { return }
	if b.pooled { panic("nbuf: buffer released twice") }
	b.pooled = true

	if b.class < 0 {
		p.unmap(b)
		return
	}
	if p.mru != nil {
		p.stash(p.mru)
	}
	p.mru = b
}

// Close unmaps every cached buffer. Buffers still checked out are not tracked and must be
// released before Close.
func (p *Pool) Close() error {
	var errs []error
	drop := func(b *Buffer) {
		if err := p.unmap(b); err != nil {
			errs = append(errs, err)
		}
	}
	if p.mru != nil {
		drop(p.mru)
		p.mru = nil
	}
	for k := range p.free {
		p.free[k].Drain(drop)
	}
	return errors.Join(errs...)
}

func (p *Pool) Stats() Stats {
	s := p.stats
	s.Cached = 0
	for k := range p.free {
		s.Cached += p.free[k].Cnt()
	}
	if p.mru != nil {
		s.Cached++
	}
	return s
}

func (p *Pool) take(class int) *Buffer {
	if class < 0 {
		return nil
	}
	if b, ok := p.free[class].TryPop(); ok {
		return b
	}
	if p.mru != nil && p.mru.class == class {
		b := p.mru
		p.mru = nil
		return b
	}
	return nil
}

func (p *Pool) stash(b *Buffer) {
	q := &p.free[b.class]
	if q.Full() {
		p.unmap(b)
		return
	}
	q.Push(b)
}

func (p *Pool) allocate(class int, need int) (*Buffer, error) {
	size := roundUp(need, c.OS_PAGE)
	if class >= 0 {
		size = c.ClassSize(class)
	}
	raw, err := p.alloc(size)
	if err != nil {
		p.log.Error("allocate", "size", size, "err", err)
		return nil, fmt.Errorf("%w (%d bytes): %w", ErrAlloc, size, err)
	}
	p.stats.Allocs++
	return &Buffer{raw: raw, class: class}, nil
}

func (p *Pool) unmap(b *Buffer) error {
	p.stats.Frees++
	raw := b.raw
	b.raw = nil
	b.owner = nil
	return p.dealloc(raw)
}

func (p *Pool) fill(b *Buffer, bs []byte) {
	copy(b.raw, bs)
	b.raw[len(bs)] = 0
	b.n = len(bs)
	if p.verify {
		b.sum = xxhash.Sum64(bs)
	}
	p.stats.Copies++
}

func roundUp(n int, align int) int {
	return (n + align - 1) / align * align
}
