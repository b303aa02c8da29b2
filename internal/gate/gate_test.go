package gate

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []string
}

func (r *recorder) Blocked()	{ r.events = append(r.events, "blocked") }
func (r *recorder) Unblocked()	{ r.events = append(r.events, "unblocked") }

func bracketed(g *Gate, fn func() error) error {
	defer g.End(g.Begin())
	return fn()
}

func Test_Gate_Pairs(t *testing.T) {
	r := &recorder{}
	g := New(r)

	assert.NoError(t, bracketed(g, func() error {
		assert.True(t, g.Open())
		return nil
	}))
	assert.False(t, g.Open())
	assert.Equal(t, []string{"blocked", "unblocked"}, r.events)
}

func Test_Gate_Ends_On_Error(t *testing.T) {
	r := &recorder{}
	g := New(r)

	err := bracketed(g, func() error { return errors.New("EIO") })
	assert.Error(t, err)
	assert.False(t, g.Open())
	assert.Equal(t, []string{"blocked", "unblocked"}, r.events)
}

func Test_Gate_Ends_On_Panic(t *testing.T) {
	r := &recorder{}
	g := New(r)

	assert.Panics(t, func() {
		bracketed(g, func() error { panic("abrupt") })
	})
	assert.False(t, g.Open())
	assert.Equal(t, []string{"blocked", "unblocked"}, r.events)

	// and the gate is usable again
	assert.NoError(t, bracketed(g, func() error { return nil }))
}

func Test_Gate_Not_Reentrant(t *testing.T) {
	g := New(nil)
	tok := g.Begin()
	assert.Panics(t, func() { g.Begin() })
	g.End(tok)
	assert.Panics(t, func() { g.End(tok) })
}

func Test_Safepoint_Counts(t *testing.T) {
	s := NewSafepoint()
	g := New(s)

	for range 3 {
		bracketed(g, func() error {
			assert.Equal(t, int64(1), s.InNative())
			return nil
		})
	}
	assert.Equal(t, int64(0), s.InNative())
	assert.Equal(t, uint64(3), s.Transitions())
	assert.Equal(t, uint64(0), s.Stalls())
}

func Test_Safepoint_Pause_Holds_Exit(t *testing.T) {
	s := NewSafepoint()
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		g := New(s)
		bracketed(g, func() error {
			close(entered)
			<-release
			return nil
		})
		close(done)
	}()

	<-entered
	// the worker is in native code, pausing must not wait for it
	s.Pause()
	close(release)

	select {
	case <-done:
		t.Fatal("thread left the bracket during a pause")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int64(1), s.InNative())

	s.Resume()
	<-done
	assert.Equal(t, int64(0), s.InNative())
	assert.Equal(t, uint64(1), s.Stalls())
}

func Test_Safepoint_Concurrent(t *testing.T) {
	s := NewSafepoint()
	var wg sync.WaitGroup

	const WORKERS = 8
	const CALLS = 100
	for range WORKERS {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := New(s)
			for range CALLS {
				bracketed(g, func() error { return nil })
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(0), s.InNative())
	require.Equal(t, uint64(WORKERS*CALLS), s.Transitions())
}
