package acquisition

import "context"

// Signal is a binary semaphore used to hand a data-ready edge from interrupt context to a
// worker. Signalling an already signalled Signal is a no-op, so bursts of edges collapse into a
// single wake.
type Signal struct {
	ch chan struct{}
}

// NewSignal returns an unsignalled Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Signal marks the signal as set. It never blocks.
func (s *Signal) Signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the signal is set and clears it. It returns false if ctx is done first.
func (s *Signal) Wait(ctx context.Context) bool {
	select {
	case <-s.ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// C exposes the underlying channel for use in a select. Receiving from it clears the signal.
func (s *Signal) C() <-chan struct{} {
	return s.ch
}

// Pending reports whether the signal is currently set without clearing it.
func (s *Signal) Pending() bool {
	return len(s.ch) > 0
}
