package transport

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between BLE writes. The firmware drops
// frames that arrive faster than it can drain its radio buffer, so every
// device write path waits on a Pacer first.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewPacer returns a Pacer spacing writes at least interval apart. A zero
// or negative interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the minimum interval since the previous Wait has
// elapsed, or ctx is done. On success the pacer's clock advances, so
// concurrent callers are serialized one interval apart.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	ready := p.last.Add(p.interval)
	if ready.Before(now) {
		ready = now
	}
	p.last = ready
	p.mu.Unlock()

	d := time.Until(ready)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset forgets the last write time, letting the next Wait proceed
// immediately. Used after settle sleeps that already exceed the interval.
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.last = time.Time{}
	p.mu.Unlock()
}
