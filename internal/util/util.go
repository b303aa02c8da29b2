package util

import (
	"fmt"
	"strings"
)

// HexDump renders data as offset-prefixed rows of 16 bytes with a printable column,
// for inspecting xattr values and raw reads from the CLI.
func HexDump(data []byte, limit int) string {
	if limit < 0 || limit > len(data) {
		limit = len(data)
	}

	const bytesPerRow = 16
	var b strings.Builder

	for i := 0; i < limit; i += bytesPerRow {
		fmt.Fprintf(&b, "+%04x | ", i)

		for j := range bytesPerRow {
			if i+j < limit {
				fmt.Fprintf(&b, "%02x", data[i+j])
			} else {
				b.WriteString("  ")
			}
			// space every 2 bytes, and a wider gap at 8
			if (j+1)%2 == 0 {
				b.WriteByte(' ')
			}
			if j == 7 {
				b.WriteByte(' ')
			}
		}

		b.WriteString("| ")
		for j := 0; j < bytesPerRow && i+j < limit; j++ {
			c := data[i+j]
			if c < 0x20 || c > 0x7e {
				c = '.'
			}
			b.WriteByte(c)
		}
		b.WriteByte('\n')
	}
	if limit < len(data) {
		fmt.Fprintf(&b, "... %d more bytes\n", len(data)-limit)
	}

	return b.String()
}

// SplitNul splits a NUL-separated list (flistxattr output) into its entries.
// A trailing NUL does not produce an empty entry.
func SplitNul(list []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range list {
		if c == 0 {
			if i > start {
				out = append(out, list[start:i])
			}
			start = i + 1
		}
	}
	if start < len(list) {
		out = append(out, list[start:])
	}
	return out
}
