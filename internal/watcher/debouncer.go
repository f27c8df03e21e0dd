package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces per-path events within a single shared window. Every
// incoming event resets the window; flush fires once it elapses with no
// further events, or immediately via Flush.
//
// Coalescing per path: add+change -> add, add+unlink -> removed entirely
// (and the timer is cancelled if the queue becomes empty), change+change ->
// change, change+unlink -> unlink, change+add -> add, unlink+add -> add,
// unlink+change -> unlink, add+add -> add, unlink+unlink -> unlink.
type Debouncer struct {
	window  time.Duration
	onBatch BatchHandler

	mu      sync.Mutex
	pending map[string]EventType
	timer   *time.Timer
	paused  bool
	stopped bool
}

// NewDebouncer creates a Debouncer that invokes onBatch for each non-empty
// flush.
func NewDebouncer(window time.Duration, onBatch BatchHandler) *Debouncer {
	return &Debouncer{
		window:  window,
		onBatch: onBatch,
		pending: make(map[string]EventType),
	}
}

// Add records ev for path, coalescing with anything already pending for it.
// Dropped silently while paused or after Stop.
func (d *Debouncer) Add(path string, ev EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.paused {
		return
	}

	if existing, ok := d.pending[path]; ok {
		result, cancel := coalesce(existing, ev)
		if cancel {
			delete(d.pending, path)
		} else {
			d.pending[path] = result
		}
	} else {
		d.pending[path] = ev
	}

	if len(d.pending) == 0 {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce applies the coalescing table to an existing pending event and a
// newly observed one.
func coalesce(existing, incoming EventType) (result EventType, cancel bool) {
	switch existing {
	case EventAdd:
		switch incoming {
		case EventChange:
			return EventAdd, false
		case EventUnlink:
			return "", true
		default: // add+add
			return EventAdd, false
		}
	case EventChange:
		switch incoming {
		case EventChange:
			return EventChange, false
		case EventUnlink:
			return EventUnlink, false
		default: // change+add
			return EventAdd, false
		}
	case EventUnlink:
		switch incoming {
		case EventAdd:
			return EventAdd, false
		case EventChange:
			return EventUnlink, false
		default: // unlink+unlink
			return EventUnlink, false
		}
	default:
		return incoming, false
	}
}

// Pause drops subsequent events until Resume. Already-pending events are
// left queued.
func (d *Debouncer) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
}

// Resume allows events to be queued again.
func (d *Debouncer) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
}

// Flush emits the current queue immediately and clears the timer. Safe to
// call before the watcher has started or when the queue is empty.
func (d *Debouncer) Flush() {
	d.flush()
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := d.pending
	d.pending = make(map[string]EventType)
	d.mu.Unlock()

	d.invoke(batch)
}

// invoke calls onBatch, recovering and logging a panic so the watcher
// keeps running regardless of handler misbehavior.
func (d *Debouncer) invoke(batch map[string]EventType) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("watcher_batch_handler_panic", slog.Any("recovered", r))
		}
	}()
	if d.onBatch != nil {
		d.onBatch(batch)
	}
}

// Stop clears pending state (timer and queue) and prevents further
// coalescing. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[string]EventType)
}
