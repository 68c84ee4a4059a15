package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces a burst of file events per path into one operation
// before it reaches the ingest pipeline, so a rapid save-then-rewrite from
// an editor doesn't trigger two re-embeds in a row. The coalescing table:
//   - create, then modify -> create   (still a brand new file)
//   - create, then delete -> dropped  (never existed as far as ingest cares)
//   - modify, then delete -> delete   (final state wins)
//   - delete, then create -> modify   (same path, replaced content)
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	stopped bool

	output chan []FileEvent
	stopCh chan struct{}
}

// pendingEvent tracks a path's most recent coalesced state along with the
// operation that started its current debounce window, since the
// coalescing rules depend on both the first and most recent operation.
type pendingEvent struct {
	event    FileEvent
	firstOp  Operation
	lastSeen time.Time
}

// outputBacklog bounds how many coalesced batches can queue up if the
// consumer falls behind before the debouncer starts dropping them.
const outputBacklog = 10

// NewDebouncer returns a Debouncer that flushes pending events window
// after the last event for a given path.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, outputBacklog),
		stopCh:  make(chan struct{}),
	}
}

// Add records event, coalescing it with any pending event for the same
// path, and (re)schedules the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	now := time.Now()
	existing, tracked := d.pending[event.Path]
	if !tracked {
		d.pending[event.Path] = &pendingEvent{
			event:    event,
			firstOp:  event.Operation,
			lastSeen: now,
		}
		d.scheduleFlush()
		return
	}

	switch merged, cancel := coalesce(existing.firstOp, existing.event, event); {
	case cancel:
		delete(d.pending, event.Path)
	default:
		existing.event = merged
		existing.lastSeen = now
	}

	d.scheduleFlush()
}

// coalesce applies the two-operation merge table described on Debouncer.
// cancel reports whether the pair cancels out entirely (CREATE+DELETE),
// in which case merged is meaningless.
func coalesce(firstOp Operation, current, next FileEvent) (merged FileEvent, cancel bool) {
	switch firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			return current, false // still a brand new file, keep CREATE
		case OpDelete:
			return FileEvent{}, true
		default:
			return next, false
		}

	case OpModify:
		return next, false // MODIFY+MODIFY or MODIFY+DELETE: latest state wins

	case OpDelete:
		if next.Operation == OpCreate {
			replaced := next
			replaced.Operation = OpModify
			return replaced, false
		}
		return next, false

	default:
		return next, false
	}
}

// scheduleFlush resets the debounce timer; callers must hold d.mu.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush emits every pending event as one batch on the output channel.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop halts the debouncer and closes its output channel. Safe to call
// more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopCh)
	close(d.output)
}
