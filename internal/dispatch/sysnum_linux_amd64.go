package dispatch

import "golang.org/x/sys/unix"

const fstatatTrap = unix.SYS_NEWFSTATAT
const renameatTrap = unix.SYS_RENAMEAT
