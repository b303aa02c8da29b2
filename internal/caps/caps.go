// Package caps records which optional OS features the running kernel offers.
//
// The probe runs once, before any dispatch call, and its result is an immutable
// Capabilities value that is handed to the dispatch layer explicitly.
package caps

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

type Mask uint32

const (
	SupportsOpenat		Mask = 1 << 1 // syscalls
	SupportsFutimes		Mask = 1 << 2
	SupportsFutimens	Mask = 1 << 3
	SupportsLutimes		Mask = 1 << 4
	SupportsXattr		Mask = 1 << 5
	SupportsBirthtime	Mask = 1 << 16 // other features
	SupportsUring		Mask = 1 << 17
)

var maskNames = []struct {
	bit  Mask
	name string
}{
	{SupportsOpenat, "openat"},
	{SupportsFutimes, "futimes"},
	{SupportsFutimens, "futimens"},
	{SupportsLutimes, "lutimes"},
	{SupportsXattr, "xattr"},
	{SupportsBirthtime, "birthtime"},
	{SupportsUring, "io_uring"},
}

// Capabilities is a write-once view over a Mask. The zero value supports nothing.
type Capabilities struct {
	mask Mask
}

func FromMask(m Mask) Capabilities {
	return Capabilities{mask: m}
}

func (c Capabilities) Mask() Mask { return c.mask }

func (c Capabilities) OpenatSupported() bool	{ return c.mask&SupportsOpenat != 0 }
func (c Capabilities) FutimesSupported() bool	{ return c.mask&SupportsFutimes != 0 }
func (c Capabilities) FutimensSupported() bool	{ return c.mask&SupportsFutimens != 0 }
func (c Capabilities) LutimesSupported() bool	{ return c.mask&SupportsLutimes != 0 }
func (c Capabilities) XattrSupported() bool		{ return c.mask&SupportsXattr != 0 }
func (c Capabilities) BirthtimeSupported() bool	{ return c.mask&SupportsBirthtime != 0 }
func (c Capabilities) UringSupported() bool		{ return c.mask&SupportsUring != 0 }

// Without returns a copy with the given bits cleared, for configuration overrides
// that disable a feature the kernel does have.
func (c Capabilities) Without(m Mask) Capabilities {
	return Capabilities{mask: c.mask &^ m}
}

// ParseNames maps names as printed by String back to bits.
func ParseNames(names []string) (Mask, error) {
	var m Mask
	NAMES:
	for _, name := range names {
		for _, n := range maskNames {
			if strings.EqualFold(name, n.name) {
				m |= n.bit
				continue NAMES
			}
		}
		return 0, fmt.Errorf("unknown capability %q", name)
	}
	return m, nil
}

func (c Capabilities) String() string {
	var parts []string
	for _, n := range maskNames {
		if c.mask&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

func (c Capabilities) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(maskNames))
	for _, n := range maskNames {
		attrs = append(attrs, slog.Bool(n.name, c.mask&n.bit != 0))
	}
	return slog.GroupValue(attrs...)
}

var process = sync.OnceValue(func() Capabilities {
	return Probe(slog.Default())
})

// Process returns the process-wide probe result. The first call probes; every later
// call returns the same value.
func Process() Capabilities {
	return process()
}
