// Package backoff provides pluggable contention back-off strategies.
// Every lock-free loop in list, splitlist and skiplist calls a
// Strategy between CAS retries instead of spinning tight.
package backoff

import (
	"runtime"
	"sync/atomic"
)

// Strategy is invoked once per failed CAS attempt with the caller's
// running attempt count, which grows by one per retry. It never blocks for an
// unbounded time and never returns an error: back-off is a throughput
// tuning knob only, never a correctness mechanism.
type Strategy interface {
	Backoff(attempt int)
	// Reset is called when a caller starts a fresh operation, letting
	// stateful strategies (Exponential) forget prior contention.
	Reset()
}

// Spin never yields; useful for strict lock-free benchmarking where
// ceding the OS thread would mask contention.
type Spin struct{}

func (Spin) Backoff(int) {}
func (Spin) Reset()      {}

// Yield spins through a small window of attempts, then calls
// runtime.Gosched() on every attempt after it, ceding the OS thread to
// whichever goroutine holds up the contended slot.
type Yield struct {
	SpinWindow int
}

func NewYield() *Yield { return &Yield{SpinWindow: 16} }

func (y *Yield) Backoff(attempt int) {
	if attempt < y.SpinWindow {
		return
	}
	runtime.Gosched()
}

func (y *Yield) Reset() {}

// Exponential doubles a pause counter up to a ceiling, spinning a
// busy-loop of `pause` iterations before falling back to Gosched once
// the pause reaches yieldThreshold. It carries state across attempts
// within one caller (the caller owns one instance per operation, or
// resets it) so repeated contention on the same key backs off further
// than a single failed CAS.
type Exponential struct {
	pause          uint32
	minPause       uint32
	maxPause       uint32
	yieldThreshold uint32
}

func NewExponential() *Exponential {
	return &Exponential{
		minPause:       4,
		maxPause:       1024,
		yieldThreshold: 256,
	}
}

func (e *Exponential) Backoff(int) {
	p := atomic.LoadUint32(&e.pause)
	if p == 0 {
		p = e.minPause
	}
	if p >= e.yieldThreshold {
		runtime.Gosched()
	} else {
		for i := uint32(0); i < p; i++ {
			procPause()
		}
	}
	next := p * 2
	if next > e.maxPause {
		next = e.maxPause
	}
	atomic.StoreUint32(&e.pause, next)
}

func (e *Exponential) Reset() {
	atomic.StoreUint32(&e.pause, e.minPause)
}

// procPause is one iteration of Exponential's busy-wait. It is an empty
// function and emits no PAUSE/YIELD instruction — portable, no
// assembly, no build tags.
func procPause() {}

// Default is the strategy used when a construction option omits
// `back_off`.
func Default() Strategy { return NewYield() }
