package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once, delay after the last call to Trigger. Triggering
// again before it fires pushes the firing back.
type Debouncer struct {
	mtx   sync.Mutex
	delay time.Duration
	fn    func()
	timer *time.Timer
	gen   uint64
}

func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mtx.Lock()
		// a Trigger or Stop raced with this firing
		if gen != d.gen || d.timer == nil {
			d.mtx.Unlock()
			return
		}
		d.timer = nil
		d.mtx.Unlock()
		d.fn()
	})
}

// Stop cancels a pending firing. It reports whether one was pending.
func (d *Debouncer) Stop() bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

func (d *Debouncer) Pending() bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.timer != nil
}
