package watcher

import (
	"context"
	"time"
)

// Debouncer groups bursts of events into one batch. A single goroutine
// (Run) owns the pending set and the timer; each event pushes the deadline
// back by the delay, and the batch is emitted once the stream goes quiet.
type Debouncer struct {
	delay  time.Duration
	events chan ChangeEvent
	output chan []ChangeEvent
}

// NewDebouncer creates a debouncer with a bounded input queue.
func NewDebouncer(delay time.Duration, queue int) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, queue),
		output: make(chan []ChangeEvent),
	}
}

// Add queues an event without blocking. It reports false when the queue
// is full and the event was dropped.
func (d *Debouncer) Add(event ChangeEvent) bool {
	select {
	case d.events <- event:
		return true
	default:
		return false
	}
}

// Output delivers batches. Each batch holds at most one event per path, in
// first-seen order, carrying the latest event type for that path.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Run consumes events until ctx is done.
func (d *Debouncer) Run(ctx context.Context) {
	var (
		timer   *time.Timer
		fire    <-chan time.Time
		order   []string
		pending = make(map[string]ChangeEvent)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event := <-d.events:
			if _, seen := pending[event.Path]; !seen {
				order = append(order, event.Path)
			}
			pending[event.Path] = event
			if timer == nil {
				timer = time.NewTimer(d.delay)
			} else {
				timer.Reset(d.delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			batch := make([]ChangeEvent, 0, len(order))
			for _, path := range order {
				batch = append(batch, pending[path])
			}
			order = nil
			pending = make(map[string]ChangeEvent)

			select {
			case d.output <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}
