//go:build linux

package dispatch

import (
	"bytes"
	"errors"

	"nativefs/internal/nerr"

	"github.com/moby/sys/user"
	"golang.org/x/sys/unix"
)

// Name lookups read the passwd and group databases from /etc. They can stall on a slow
// or network-mounted root, so they run inside the gate like any other call. NSS is not
// consulted: accounts that only exist in LDAP or SSSD are reported as unknown.

// Getpwuid returns the login name for uid. An unknown uid is ENOENT.
func (t *Thread) Getpwuid(uid int) ([]byte, error) {
	var u user.User
	err := t.blocking(func() (err error) {
		u, err = user.LookupUid(uid)
		return err
	})
	if errors.Is(err, user.ErrNoPasswdEntries) {
		return nil, nerr.Translate("getpwuid", unix.ENOENT, nil)
	}
	if err != nil {
		return nil, nerr.FromError("getpwuid", err, nil, unix.EIO)
	}
	return []byte(u.Name), nil
}

// Getgrgid returns the group name for gid. An unknown gid is ENOENT.
func (t *Thread) Getgrgid(gid int) ([]byte, error) {
	var g user.Group
	err := t.blocking(func() (err error) {
		g, err = user.LookupGid(gid)
		return err
	})
	if errors.Is(err, user.ErrNoGroupEntries) {
		return nil, nerr.Translate("getgrgid", unix.ENOENT, nil)
	}
	if err != nil {
		return nil, nerr.FromError("getgrgid", err, nil, unix.EIO)
	}
	return []byte(g.Name), nil
}

// Getpwnam returns the uid for name, or -1 with no error if there is no such user.
func (t *Thread) Getpwnam(name []byte) (int, error) {
	if bytes.IndexByte(name, 0) >= 0 {
		return -1, nerr.Translate("getpwnam", unix.EINVAL, name)
	}
	var u user.User
	err := t.blocking(func() (err error) {
		u, err = user.LookupUser(string(name))
		return err
	})
	if errors.Is(err, user.ErrNoPasswdEntries) {
		return -1, nil
	}
	if err != nil {
		return -1, nerr.FromError("getpwnam", err, name, unix.EIO)
	}
	return u.Uid, nil
}

// Getgrnam returns the gid for name, or -1 with no error if there is no such group.
func (t *Thread) Getgrnam(name []byte) (int, error) {
	if bytes.IndexByte(name, 0) >= 0 {
		return -1, nerr.Translate("getgrnam", unix.EINVAL, name)
	}
	var g user.Group
	err := t.blocking(func() (err error) {
		g, err = user.LookupGroup(string(name))
		return err
	})
	if errors.Is(err, user.ErrNoGroupEntries) {
		return -1, nil
	}
	if err != nil {
		return -1, nerr.FromError("getgrnam", err, name, unix.EIO)
	}
	return g.Gid, nil
}
