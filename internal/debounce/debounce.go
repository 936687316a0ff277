// Package debounce coalesces a burst of per-path change events into a
// single pending entry per path, forwarding each path to the committer
// only after it has been quiet for Idle. This is what keeps a large
// find-and-replace or a build tool's output churn from flooding the
// version manager with one commit per intermediate write (§5).
package debounce

import (
	"sync"
	"time"

	"bt-go/internal/watch"
)

// DefaultIdle is how long a path must go without a new event before it
// is forwarded downstream.
const DefaultIdle = 250 * time.Millisecond

// DefaultQueueSize bounds the number of distinct pending paths held at
// once. Once full, the oldest pending path (by first-seen time) is
// dropped to make room for the new one — the watcher is expected to
// pick the drop back up on the next full rescan.
const DefaultQueueSize = 1024

// Debouncer coalesces watch.Events by path and emits a Ready path once
// it has settled for Idle.
type Debouncer struct {
	idle      time.Duration
	queueSize int

	mu      sync.Mutex
	pending map[string]*pendingEntry
	order   []string // insertion order, oldest first, for eviction

	ready    chan string
	stopCh   chan struct{}
	stopOnce sync.Once
}

type pendingEntry struct {
	kind    watch.EventKind
	timer   *time.Timer
	removed bool
}

// New creates a Debouncer with the given idle window and queue bound.
// A zero idle or queueSize falls back to the package defaults.
func New(idle time.Duration, queueSize int) *Debouncer {
	if idle <= 0 {
		idle = DefaultIdle
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Debouncer{
		idle:      idle,
		queueSize: queueSize,
		pending:   make(map[string]*pendingEntry),
		ready:     make(chan string, queueSize),
		stopCh:    make(chan struct{}),
	}
}

// Ready returns the channel of paths that have settled and are ready
// for the committer to pick up. The EventKind is not carried on this
// channel — the committer re-stats the path to decide modified vs
// removed, since an event may have settled before an even later event
// arrived while the reader was busy.
func (d *Debouncer) Ready() <-chan string { return d.ready }

// Run consumes events from src until it is closed or Stop is called.
// It blocks, so callers typically invoke it in its own goroutine.
func (d *Debouncer) Run(src <-chan watch.Event) {
	for {
		select {
		case ev, ok := <-src:
			if !ok {
				return
			}
			d.touch(ev)
		case <-d.stopCh:
			return
		}
	}
}

// Stop cancels all pending timers and stops accepting new events.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.mu.Lock()
		for _, e := range d.pending {
			e.timer.Stop()
		}
		d.mu.Unlock()
	})
}

func (d *Debouncer) touch(ev watch.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.pending[ev.Path]; ok {
		e.kind = ev.Kind
		e.timer.Reset(d.idle)
		return
	}

	if len(d.pending) >= d.queueSize {
		d.evictOldestLocked()
	}

	path := ev.Path
	e := &pendingEntry{kind: ev.Kind}
	e.timer = time.AfterFunc(d.idle, func() { d.fire(path) })
	d.pending[path] = e
	d.order = append(d.order, path)
}

func (d *Debouncer) evictOldestLocked() {
	for len(d.order) > 0 {
		oldest := d.order[0]
		d.order = d.order[1:]
		if e, ok := d.pending[oldest]; ok {
			e.timer.Stop()
			delete(d.pending, oldest)
			return
		}
	}
}

func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	_, ok := d.pending[path]
	if ok {
		delete(d.pending, path)
		for i, p := range d.order {
			if p == path {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
	d.mu.Unlock()

	if !ok {
		return
	}

	select {
	case d.ready <- path:
	case <-d.stopCh:
	}
}
