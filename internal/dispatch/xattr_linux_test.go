//go:build linux

package dispatch

import (
	"errors"
	"testing"

	"nativefs/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func xattrFd(t *testing.T, th *Thread) int {
	if !th.Caps().XattrSupported() {
		t.Skip("no xattr support")
	}
	fd := openTemp(t, th)
	err := th.Fsetxattr(fd, []byte("user.probe"), []byte("1"))
	if errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EPERM) {
		t.Skipf("file system refuses user xattrs: %v", err)
	}
	require.NoError(t, err)
	require.NoError(t, th.Fremovexattr(fd, []byte("user.probe")))
	return fd
}

func Test_Xattr_RoundTrip(t *testing.T) {
	th := attach(t)
	fd := xattrFd(t, th)

	require.NoError(t, th.Fsetxattr(fd, []byte("user.moo"), []byte("cow")))
	require.NoError(t, th.Fsetxattr(fd, []byte("user.empty"), nil))

	n, err := th.Fgetxattr(fd, []byte("user.moo"), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	val := make([]byte, n)
	n, err = th.Fgetxattr(fd, []byte("user.moo"), val)
	require.NoError(t, err)
	assert.Equal(t, []byte("cow"), val[:n])

	n, err = th.Fgetxattr(fd, []byte("user.empty"), val)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = th.Fgetxattr(fd, []byte("user.moo"), make([]byte, 1))
	assert.ErrorIs(t, err, unix.ERANGE)

	size, err := th.Flistxattr(fd, nil)
	require.NoError(t, err)
	list := make([]byte, size)
	size, err = th.Flistxattr(fd, list)
	require.NoError(t, err)
	var names []string
	for _, name := range util.SplitNul(list[:size]) {
		names = append(names, string(name))
	}
	assert.ElementsMatch(t, []string{"user.moo", "user.empty"}, names)

	require.NoError(t, th.Fremovexattr(fd, []byte("user.moo")))
	_, err = th.Fgetxattr(fd, []byte("user.moo"), val)
	assert.ErrorIs(t, err, unix.ENODATA)
	assert.ErrorIs(t, th.Fremovexattr(fd, []byte("user.moo")), unix.ENODATA)
}

func Test_Xattr_Bad_Names(t *testing.T) {
	th := attach(t)
	fd := openTemp(t, th)

	_, err := th.Fgetxattr(fd, []byte("user.\x00moo"), nil)
	assert.ErrorIs(t, err, unix.EINVAL)
	// no namespace prefix
	err = th.Fsetxattr(fd, []byte("moo"), []byte("x"))
	assert.Error(t, err)
	_, err = th.Flistxattr(0x7ffff, nil)
	assert.ErrorIs(t, err, unix.EBADF)
}
