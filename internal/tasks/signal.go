package tasks

import (
	"sync/atomic"
	"time"
)

// Signal is a binary semaphore. Only the first Give is delivered; later
// gives, and gives after Destroy, report false.
type Signal struct {
	ch        chan struct{}
	given     atomic.Bool
	destroyed atomic.Bool
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

func (s *Signal) Give() bool {
	if s.destroyed.Load() {
		return false
	}
	if !s.given.CompareAndSwap(false, true) {
		return false
	}
	s.ch <- struct{}{}
	return true
}

// Wait blocks until the signal is given or timeout elapses. It reports
// whether the signal arrived.
func (s *Signal) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Destroy releases the signal. A task still holding it can call Give safely.
func (s *Signal) Destroy() {
	s.destroyed.Store(true)
}
