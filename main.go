//go:build linux

package main

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	c "nativefs/internal"
	"nativefs/internal/caps"
	"nativefs/internal/config"
	"nativefs/internal/dispatch"
	"nativefs/internal/nerr"
	"nativefs/internal/util"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"
)

type nfs struct {
	log	*slog.Logger
	d	*dispatch.Dispatcher
}

func main() {
	app := &nfs{}

	cliApp := &cli.App{
		Name:	"nativefs",
		Usage:	"poke at the file system through the native dispatch layer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "uring", Usage: "use io_uring for positional reads"},
		},
		Before: app.setup,
		Commands: []*cli.Command{
			{Name: "caps", Usage: "print the probed capabilities", Action: app.caps},
			{Name: "stat", Usage: "stat files", ArgsUsage: "PATH...", Action: app.stat,
				Flags: []cli.Flag{&cli.BoolFlag{Name: "nofollow", Aliases: []string{"L"}}}},
			{Name: "ls", Usage: "list a directory", ArgsUsage: "DIR", Action: app.ls},
			{Name: "xattr", Usage: "dump extended attributes", ArgsUsage: "PATH", Action: app.xattr,
				Flags: []cli.Flag{&cli.IntFlag{Name: "limit", Value: 0x40, Usage: "bytes of each value to dump"}}},
			{Name: "id", Usage: "look up users and groups", ArgsUsage: "NAME|ID...", Action: app.id},
			{Name: "cat", Usage: "copy a file to stdout", ArgsUsage: "PATH", Action: app.cat},
			{Name: "realpath", Usage: "resolve a path", ArgsUsage: "PATH...", Action: app.realpath},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("nativefs", "err", err)
		os.Exit(1)
	}
}

func (a *nfs) setup(cctx *cli.Context) error {
	cfg := config.Defaults()
	if path := cctx.String("config"); path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil { return err }
	}
	if lvl := cctx.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if cctx.Bool("uring") {
		cfg.Uring.Enabled = true
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil { return err }

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:		level,
		TimeFormat:	time.TimeOnly,
		NoColor:	!isatty.IsTerminal(os.Stderr.Fd()),
	})))
	a.log = slog.With("src", "main")

	a.d = dispatch.New(caps.Process(), dispatch.WithConfig(cfg))
	return nil
}

// attach hands fn a Thread for the duration of one command.
func (a *nfs) attach(fn func(*dispatch.Thread) error) error {
	th := a.d.Attach()
	defer func() {
		a.log.Debug("detach", "pool", th.PoolStats())
		if err := th.Detach(); err != nil {
			a.log.Warn("detach", "err", err)
		}
	}()
	return fn(th)
}

func (a *nfs) caps(cctx *cli.Context) error {
	cs := a.d.Caps()
	fmt.Printf("mask      %#x\n", uint32(cs.Mask()))
	fmt.Printf("openat    %v\n", cs.OpenatSupported())
	fmt.Printf("futimes   %v\n", cs.FutimesSupported())
	fmt.Printf("futimens  %v\n", cs.FutimensSupported())
	fmt.Printf("lutimes   %v\n", cs.LutimesSupported())
	fmt.Printf("xattr     %v\n", cs.XattrSupported())
	fmt.Printf("birthtime %v\n", cs.BirthtimeSupported())
	fmt.Printf("io_uring  %v\n", cs.UringSupported())
	return nil
}

func (a *nfs) stat(cctx *cli.Context) error {
	return a.attach(func(th *dispatch.Thread) error {
		for _, arg := range cctx.Args().Slice() {
			p := dispatch.NewPath(arg)
			var st unix.Stat_t
			var err error
			if cctx.Bool("nofollow") {
				err = th.Lstat(p, &st)
			} else {
				err = th.Stat(p, &st)
			}
			if err != nil { return err }

			fmt.Printf("%s\n", arg)
			fmt.Printf("  type   %s\n", fileType(st.Mode))
			fmt.Printf("  mode   %#o\n", st.Mode&0o7777)
			fmt.Printf("  size   %d\n", st.Size)
			fmt.Printf("  inode  %d  links %d\n", st.Ino, st.Nlink)
			fmt.Printf("  owner  %s:%s\n", userName(th, int(st.Uid)), groupName(th, int(st.Gid)))
			fmt.Printf("  mtime  %s\n", time.Unix(st.Mtim.Unix()).Format(time.RFC3339Nano))

			if th.Caps().BirthtimeSupported() {
				var stx unix.Statx_t
				flags := 0
				if cctx.Bool("nofollow") {
					flags = unix.AT_SYMLINK_NOFOLLOW
				}
				if err := th.Statx(p, flags, unix.STATX_BTIME, &stx); err == nil && stx.Mask&unix.STATX_BTIME != 0 {
					fmt.Printf("  birth  %s\n", time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)).Format(time.RFC3339Nano))
				}
			}
			if st.Mode&unix.S_IFMT == unix.S_IFLNK {
				if target, err := th.Readlink(p); err == nil {
					fmt.Printf("  target %s\n", target)
				}
			}
		}
		return nil
	})
}

func (a *nfs) ls(cctx *cli.Context) error {
	dir := cctx.Args().First()
	if dir == "" {
		dir = "."
	}
	return a.attach(func(th *dispatch.Thread) error {
		d, err := th.Opendir(dispatch.NewPath(dir))
		if err != nil { return err }
		defer th.Closedir(d)

		var names []string
		for {
			name, err := d.Read()
			if err != nil { return err }
			if name == nil { break }
			names = append(names, string(name))
		}
		slices.Sort(names)

		for _, name := range names {
			var st unix.Stat_t
			if err := th.Fstatat(d.Fd(), []byte(name), unix.AT_SYMLINK_NOFOLLOW, &st); err != nil {
				fmt.Printf("?          %s\n", name)
				continue
			}
			fmt.Printf("%-4s %#05o %10d %s\n", fileType(st.Mode), st.Mode&0o7777, st.Size, name)
		}
		return nil
	})
}

func (a *nfs) xattr(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return cli.Exit("xattr takes exactly one path", 2)
	}
	return a.attach(func(th *dispatch.Thread) error {
		if !th.Caps().XattrSupported() {
			return nerr.Translate("xattr", unix.ENOTSUP, nil)
		}
		fd, err := th.Open(dispatch.NewPath(cctx.Args().First()), unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
		if err != nil { return err }
		defer th.CloseWith(fd, nil)

		list := make([]byte, c.XATTR_SIZE_MAX)
		n, err := th.Flistxattr(fd, list)
		if err != nil { return err }

		val := make([]byte, c.XATTR_SIZE_MAX)
		for _, name := range util.SplitNul(list[:n]) {
			vn, err := th.Fgetxattr(fd, name, val)
			if err != nil {
				a.log.Warn("fgetxattr", "name", string(name), "err", err)
				continue
			}
			fmt.Printf("%s (%d bytes)\n%s", name, vn, util.HexDump(val[:vn], cctx.Int("limit")))
		}
		return nil
	})
}

func (a *nfs) id(cctx *cli.Context) error {
	return a.attach(func(th *dispatch.Thread) error {
		for _, arg := range cctx.Args().Slice() {
			if id, err := strconv.Atoi(arg); err == nil {
				fmt.Printf("%d user=%s group=%s\n", id, userName(th, id), groupName(th, id))
				continue
			}
			uid, err := th.Getpwnam([]byte(arg))
			if err != nil { return err }
			gid, err := th.Getgrnam([]byte(arg))
			if err != nil { return err }
			fmt.Printf("%s uid=%d gid=%d\n", arg, uid, gid)
		}
		return nil
	})
}

func (a *nfs) cat(cctx *cli.Context) error {
	if cctx.NArg() != 1 {
		return cli.Exit("cat takes exactly one path", 2)
	}
	return a.attach(func(th *dispatch.Thread) error {
		fd, err := th.Open(dispatch.NewPath(cctx.Args().First()), unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil { return err }
		defer th.CloseWith(fd, nil)

		a.log.Debug("cat", "uring", th.UsesRing())
		buf := make([]byte, 0x10000)
		var off int64
		for {
			n, err := th.Pread(fd, buf, off)
			if err != nil { return err }
			if n == 0 { return nil }
			off += int64(n)

			out := buf[:n]
			for len(out) > 0 {
				w, err := th.Write(unix.Stdout, out)
				if err != nil { return err }
				out = out[w:]
			}
		}
	})
}

func (a *nfs) realpath(cctx *cli.Context) error {
	return a.attach(func(th *dispatch.Thread) error {
		for _, arg := range cctx.Args().Slice() {
			p, err := th.Realpath(dispatch.NewPath(arg))
			if err != nil { return err }
			fmt.Printf("%s\n", p)
		}
		return nil
	})
}

func userName(th *dispatch.Thread, uid int) string {
	name, err := th.Getpwuid(uid)
	if err != nil {
		return strconv.Itoa(uid)
	}
	return string(name)
}

func groupName(th *dispatch.Thread, gid int) string {
	name, err := th.Getgrgid(gid)
	if err != nil {
		return strconv.Itoa(gid)
	}
	return string(name)
}

func fileType(mode uint32) string {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:	return "file"
	case unix.S_IFDIR:	return "dir"
	case unix.S_IFLNK:	return "link"
	case unix.S_IFIFO:	return "fifo"
	case unix.S_IFSOCK:	return "sock"
	case unix.S_IFCHR:	return "chr"
	case unix.S_IFBLK:	return "blk"
	}
	return "?"
}
