// Package gate brackets native calls so that a cooperating scheduler can treat the calling
// thread as parked while it is inside one.
//
// A Gate is per thread and not reentrant: one open bracket at a time.
package gate

import (
	"github.com/negrel/assert"
)

// Coordinator is told when a thread enters and leaves a blocking native call.
// Unblocked may itself block, e.g. while a pause is in progress.
type Coordinator interface {
	Blocked()
	Unblocked()
}

type Token struct {
	gen uint64
}

type Gate struct {
	coord	Coordinator
	open	bool
	gen		uint64
}

func New(coord Coordinator) *Gate {
	if coord == nil {
		coord = Nop{}
	}
	return &Gate{coord: coord}
}

// Begin opens the bracket. Pair it with End on every exit path:
//
//	defer g.End(g.Begin())
func (g *Gate) Begin() Token {
	if g.open { panic("gate: nested blocking call") }
	g.open = true
	g.gen++
	g.coord.Blocked()
	return Token{gen: g.gen}
}

func (g *Gate) End(tok Token) {
	assert.Equal(tok.gen, g.gen, "gate token from another bracket")
	if !g.open { panic("gate: End without Begin") }
	g.open = false
	g.coord.Unblocked()
}

func (g *Gate) Open() bool {
	return g.open
}

type Nop struct{}

func (Nop) Blocked()	{}
func (Nop) Unblocked()	{}
