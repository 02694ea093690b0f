package main

import (
	"sync"
	"time"
)

// volumeSender coalesces set_volume requests. A request waits out the
// debounce window and only the latest value is sent; at most one send is in
// flight, and a value requested meanwhile goes out when it returns.
type volumeSender struct {
	delay time.Duration
	send  func(v int)

	mu         sync.Mutex
	timer      *time.Timer
	pending    int
	hasPending bool
	inFlight   bool
	closed     bool
	// set by close while a send is running; the queued value still goes out
	flushOnIdle bool
}

func newVolumeSender(delay time.Duration, send func(v int)) *volumeSender {
	return &volumeSender{delay: delay, send: send}
}

// Request records v as the latest wanted volume. It never blocks on the
// native layer.
func (d *volumeSender) Request(v int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = v
	d.hasPending = true

	if d.delay <= 0 {
		d.flushLocked()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *volumeSender) fire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timer = nil
	d.flushLocked()
}

func (d *volumeSender) flushLocked() {
	if d.inFlight || !d.hasPending {
		return
	}
	v := d.pending
	d.hasPending = false
	d.inFlight = true
	go func() {
		d.send(v)
		d.mu.Lock()
		defer d.mu.Unlock()
		d.inFlight = false
		if d.flushOnIdle {
			d.flushOnIdle = false
			d.flushLocked()
		} else if !d.closed && d.timer == nil {
			d.flushLocked()
		}
	}()
}

// Busy reports whether a value is waiting or being sent.
func (d *volumeSender) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending || d.inFlight || d.timer != nil
}

// close stops accepting requests. A value still waiting for the debounce
// window is sent right away, or as soon as the running send returns, so the
// last drag position is not lost.
func (d *volumeSender) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.inFlight {
		d.flushOnIdle = d.hasPending
	} else {
		d.flushLocked()
	}
	d.closed = true
}
