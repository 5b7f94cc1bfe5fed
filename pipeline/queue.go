package pipeline

import (
	"sync"

	"murmur/audio"
)

// WindowQueue is a bounded FIFO between the capture callback and the
// inference worker. Push never blocks: when the queue is full the oldest
// window is evicted. After Close, Pop keeps returning queued windows until
// the queue is empty.
type WindowQueue struct {
	mu     sync.Mutex // serializes producers and Close
	ch     chan audio.Window
	closed bool
}

func NewWindowQueue(capacity int) *WindowQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &WindowQueue{ch: make(chan audio.Window, capacity)}
}

// Push enqueues w. If a window had to be evicted it is returned with
// dropped set. ok is false once the queue is closed.
func (q *WindowQueue) Push(w audio.Window) (evicted audio.Window, dropped, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return audio.Window{}, false, false
	}
	for {
		select {
		case q.ch <- w:
			return evicted, dropped, true
		default:
		}
		select {
		case old := <-q.ch:
			if !dropped {
				evicted, dropped = old, true
			}
		default:
			// the consumer freed a slot between the two selects
		}
	}
}

// Pop blocks until a window is available. It returns false once the queue
// is closed and drained.
func (q *WindowQueue) Pop() (audio.Window, bool) {
	w, ok := <-q.ch
	return w, ok
}

func (q *WindowQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

func (q *WindowQueue) Len() int { return len(q.ch) }

func (q *WindowQueue) Cap() int { return cap(q.ch) }
