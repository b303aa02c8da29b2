package gate

import (
	"sync"
	"sync/atomic"
)

// Safepoint is a Coordinator for stop-the-world style pauses. While paused, a thread that
// finishes its native call waits in Unblocked until Resume. Threads still inside a native
// call are never waited on, which is the point of bracketing them.
type Safepoint struct {
	mu			sync.Mutex
	cond		*sync.Cond
	paused		atomic.Bool

	inNative	atomic.Int64
	transitions	atomic.Uint64
	stalls		atomic.Uint64
}

func NewSafepoint() *Safepoint {
	s := &Safepoint{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Safepoint) Blocked() {
	s.inNative.Add(1)
	s.transitions.Add(1)
}

func (s *Safepoint) Unblocked() {
	if s.paused.Load() {
		s.mu.Lock()
		if s.paused.Load() {
			s.stalls.Add(1)
		}
		for s.paused.Load() {
			s.cond.Wait()
		}
		s.mu.Unlock()
	}
	s.inNative.Add(-1)
}

func (s *Safepoint) Pause() {
	s.mu.Lock()
	s.paused.Store(true)
	s.mu.Unlock()
}

func (s *Safepoint) Resume() {
	s.mu.Lock()
	s.paused.Store(false)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// InNative is the number of threads currently inside a bracket, including those held at
// the exit by a pause.
func (s *Safepoint) InNative() int64 {
	return s.inNative.Load()
}

func (s *Safepoint) Transitions() uint64 {
	return s.transitions.Load()
}

// Stalls counts bracket exits that had to wait for a Resume.
func (s *Safepoint) Stalls() uint64 {
	return s.stalls.Load()
}
