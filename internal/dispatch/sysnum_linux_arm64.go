package dispatch

import "golang.org/x/sys/unix"

const fstatatTrap = unix.SYS_NEWFSTATAT

// renameat2 with flags 0 behaves as renameat
const renameatTrap = unix.SYS_RENAMEAT2
