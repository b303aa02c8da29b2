//go:build linux

package dispatch

import (
	"bytes"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"nativefs/internal/caps"
	"nativefs/internal/iomgr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openTemp(t *testing.T, th *Thread) int {
	path := filepath.Join(t.TempDir(), "data.moo")
	fd, err := th.Open(NewPath(path), unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { th.Close(fd) })
	return fd
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	r := rand.New(rand.NewChaCha8([32]byte{byte(n)}))
	for i := range b {
		b[i] = byte(r.IntN(256))
	}
	return b
}

func writeAll(t *testing.T, th *Thread, fd int, p []byte) {
	for len(p) > 0 {
		n, err := th.Write(fd, p)
		require.NoError(t, err)
		require.Positive(t, n)
		p = p[n:]
	}
}

func readAll(t *testing.T, th *Thread, fd int, n int) []byte {
	out := make([]byte, 0, n)
	buf := make([]byte, 0x10000)
	for {
		m, err := th.Read(fd, buf)
		require.NoError(t, err)
		if m == 0 {
			return out
		}
		out = append(out, buf[:m]...)
	}
}

func Test_IO_Write_Read_RoundTrip(t *testing.T) {
	th := attach(t)

	for _, n := range []int{0, 1, 4096, 1_000_000} {
		fd := openTemp(t, th)
		data := randomBytes(n)

		writeAll(t, th, fd, data)
		pos, err := th.Lseek(fd, 0, unix.SEEK_SET)
		require.NoError(t, err)
		require.Equal(t, int64(0), pos)

		got := readAll(t, th, fd, n)
		assert.Equal(t, n, len(got), "n=%d", n)
		assert.True(t, bytes.Equal(data, got), "n=%d", n)
	}
}

func Test_IO_Zero_Length_Skips_Kernel(t *testing.T) {
	th := attach(t)

	// a bad descriptor would fail if the call went through
	n, err := th.Write(0x7ffff, nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = th.Read(0x7ffff, []byte{})
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = th.Read(0x7ffff, make([]byte, 1))
	assert.ErrorIs(t, err, unix.EBADF)
}

func Test_IO_Pipe(t *testing.T) {
	th := attach(t)
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC))
	defer th.Close(fds[0])
	defer th.Close(fds[1])

	n, err := th.Write(fds[1], []byte("moo"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf := make([]byte, 16)
	n, err = th.Read(fds[0], buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("moo"), buf[:n])

	_, err = th.Lseek(fds[0], 0, unix.SEEK_SET)
	assert.ErrorIs(t, err, unix.ESPIPE)
}

func testPositional(t *testing.T, th *Thread) {
	fd := openTemp(t, th)
	data := randomBytes(3 * 4096)

	n, err := th.Pwrite(fd, data, 4096)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	// the file position stays put
	pos, err := th.Lseek(fd, 0, unix.SEEK_CUR)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	got := make([]byte, len(data))
	n, err = th.Pread(fd, got, 4096)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	assert.Equal(t, data, got)

	hole := make([]byte, 4096)
	n, err = th.Pread(fd, hole, 0)
	require.NoError(t, err)
	assert.Equal(t, 4096, n)
	assert.Equal(t, make([]byte, 4096), hole)

	n, err = th.PwriteSync(fd, []byte("moo"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, th.Fsync(fd))

	n, err = th.Pread(fd, got[:3], 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("moo"), got[:n])

	// past the end
	n, err = th.Pread(fd, got, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = th.Pread(0x7ffff, got, 0)
	assert.ErrorIs(t, err, unix.EBADF)
	assert.ErrorIs(t, th.Fsync(0x7ffff), unix.EBADF)
}

func Test_IO_Positional_Syscalls(t *testing.T) {
	th := attach(t)
	require.False(t, th.UsesRing())
	testPositional(t, th)
}

func Test_IO_Positional_Uring(t *testing.T) {
	if !caps.Process().UringSupported() {
		t.Skip("io_uring unavailable")
	}
	cfg := testConfig()
	cfg.Uring.Enabled = true
	th := New(caps.Process(), WithConfig(cfg)).Attach()
	t.Cleanup(func() { assert.NoError(t, th.Detach()) })
	if !th.UsesRing() {
		t.Skip("ring setup failed")
	}
	testPositional(t, th)
}

func Test_IO_Uring_Disabled_By_Caps(t *testing.T) {
	cfg := testConfig()
	cfg.Uring.Enabled = true
	th := New(caps.FromMask(caps.SupportsOpenat), WithConfig(cfg)).Attach()
	defer th.Detach()
	assert.False(t, th.UsesRing())
}

// fakeRing completes writes with a fixed result and records every op it was handed.
type fakeRing struct {
	writeN		int
	writeErrno	unix.Errno
	ops			[]iomgr.OpCode
	syncs		[]bool
}

func (r *fakeRing) Do(op *iomgr.Op) (int, unix.Errno) {
	r.ops = append(r.ops, op.Opcode)
	r.syncs = append(r.syncs, op.Sync)
	if op.Opcode == iomgr.OpWrite {
		return r.writeN, r.writeErrno
	}
	return 0, 0
}

func (r *fakeRing) Close() {}

func Test_IO_PwriteSync_Short_Write_Still_Syncs(t *testing.T) {
	th := attach(t)
	ring := &fakeRing{writeN: 2, writeErrno: unix.ECANCELED}
	th.ring = ring

	n, err := th.PwriteSync(3, []byte("moo"), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []iomgr.OpCode{iomgr.OpWrite, iomgr.OpSync}, ring.ops)
	assert.Equal(t, []bool{true, false}, ring.syncs)

	// a linked chain that ran to the end needs no second fsync
	ring.ops, ring.syncs = nil, nil
	ring.writeN, ring.writeErrno = 3, 0
	n, err = th.PwriteSync(3, []byte("moo"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []iomgr.OpCode{iomgr.OpWrite}, ring.ops)

	ring.ops = nil
	ring.writeN, ring.writeErrno = 0, unix.ENOSPC
	_, err = th.PwriteSync(3, []byte("moo"), 0)
	assert.ErrorIs(t, err, unix.ENOSPC)
	th.ring = nil
}

func Test_IO_PwriteSync_Uring_Fsync_Fails(t *testing.T) {
	th := attach(t)
	// the stand-alone fsync also goes to the ring; make that one fail
	th.ring = failSyncRing{}
	t.Cleanup(func() { th.ring = nil })

	_, err := th.PwriteSync(3, []byte("moo"), 0)
	assert.ErrorIs(t, err, unix.EIO)
}

type failSyncRing struct{}

func (failSyncRing) Do(op *iomgr.Op) (int, unix.Errno) {
	if op.Opcode == iomgr.OpSync {
		return 0, unix.EIO
	}
	return 1, unix.ECANCELED
}

func (failSyncRing) Close() {}
