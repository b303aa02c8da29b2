// Constants
package internal

const LEN_NUL 	= 0x01

const OS_PAGE		= 0x1000
const PATH_MAX		= 0x1000 // linux/limits.h, includes the terminator

// Native buffer size classes are OS_PAGE << k for k in [0, NUM_CLASSES).
// Anything bigger than the last class is mapped on demand and unmapped on release.
const NUM_CLASSES		= 5
const MAX_CLASS_SIZE	= OS_PAGE << (NUM_CLASSES - 1)
const FREE_LIST_DEPTH	= 4 // per size class, per thread

// getdents64 refill size for directory streams
const DIRENT_BUF_SIZE	= 0x2000

// Sentinel "no descriptor" value, close() on it is a no-op.
const FD_INVALID	= -1

// Upper bound on a single xattr value / name list (XATTR_SIZE_MAX)
const XATTR_SIZE_MAX	= 0x10000

// ClassFor returns the size class that fits n bytes, or -1 if n is larger than every class.
func ClassFor(n int) int {
	size := OS_PAGE
	for k := range NUM_CLASSES {
		if n <= size {
			return k
		}
		size <<= 1
	}
	return -1
}

func ClassSize(k int) int {
	return OS_PAGE << k
}
