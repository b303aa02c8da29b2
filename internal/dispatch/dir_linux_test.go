//go:build linux

package dispatch

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func readNames(t *testing.T, d *Dir) []string {
	var names []string
	for {
		name, err := d.Read()
		require.NoError(t, err)
		if name == nil {
			slices.Sort(names)
			return names
		}
		names = append(names, string(name))
	}
}

func Test_Dir_Read(t *testing.T) {
	th := attach(t)
	dir := t.TempDir()
	want := []string{"a", "b", "c"}
	for _, n := range want {
		touch(t, filepath.Join(dir, n))
	}

	d, err := th.Opendir(NewPath(dir))
	require.NoError(t, err)
	assert.Equal(t, want, readNames(t, d))

	// stays at the end
	name, err := d.Read()
	assert.NoError(t, err)
	assert.Nil(t, name)

	require.NoError(t, d.Rewind())
	assert.Equal(t, want, readNames(t, d))

	require.NoError(t, th.Closedir(d))
	assert.NoError(t, th.Closedir(d), "second close is a no-op")
}

func Test_Dir_Read_Many_Refills(t *testing.T) {
	th := attach(t)
	dir := t.TempDir()
	faker := gofakeit.NewFaker(rand.NewChaCha8([32]byte{0}), true)
	var want []string
	for i := range 400 {
		n := fmt.Sprintf("%03d-%s-%s", i, faker.DomainName(), faker.ProductUPC())
		touch(t, filepath.Join(dir, n))
		want = append(want, n)
	}

	d, err := th.Opendir(NewPath(dir))
	require.NoError(t, err)
	defer th.Closedir(d)
	assert.Equal(t, want, readNames(t, d))
}

func Test_Dir_Empty(t *testing.T) {
	th := attach(t)
	d, err := th.Opendir(NewPath(t.TempDir()))
	require.NoError(t, err)
	defer th.Closedir(d)
	assert.Empty(t, readNames(t, d))
}

func Test_Dir_Opendir_Errors(t *testing.T) {
	th := attach(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	touch(t, file)

	_, err := th.Opendir(NewPath(filepath.Join(dir, "missing")))
	assert.ErrorIs(t, err, unix.ENOENT)
	_, err = th.Opendir(NewPath(file))
	assert.ErrorIs(t, err, unix.ENOTDIR)
}

func Test_Dir_Fdopendir(t *testing.T) {
	th := attach(t)
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "moo"))

	fd, err := th.Open(NewPath(filepath.Join(dir, "moo")), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	require.NoError(t, err)
	_, err = th.Fdopendir(fd)
	assert.ErrorIs(t, err, unix.ENOTDIR)
	require.NoError(t, th.Close(fd))

	dfd, err := th.Open(NewPath(dir), unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	require.NoError(t, err)
	d, err := th.Fdopendir(dfd)
	require.NoError(t, err)
	assert.Equal(t, dfd, d.Fd())
	assert.Equal(t, []string{"moo"}, readNames(t, d))
	require.NoError(t, th.Closedir(d))

	// the stream owned the descriptor
	assert.ErrorIs(t, th.Close(dfd), unix.EBADF)
}
