package sntpd

import (
	"net"
	"time"
)

// queueItem carries one classified datagram from the receiver to a worker.
type queueItem struct {
	pkt        Packet
	status     RequestStatus
	rawLen     int
	addr       *net.UDPAddr
	receivedAt time.Time
}

// requestQueue is the bounded FIFO between the single receiver and the
// worker pool. Dequeue blocks; enqueue never does, so a saturated pool
// sheds load instead of stalling the socket read.
type requestQueue struct {
	ch chan queueItem
}

func newRequestQueue(capacity int) *requestQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &requestQueue{ch: make(chan queueItem, capacity)}
}

// push reports false when the queue is full and the item was dropped.
func (q *requestQueue) push(it queueItem) bool {
	select {
	case q.ch <- it:
		return true
	default:
		return false
	}
}

// pop blocks until an item is available. With a positive timeout it gives
// up after that long; ok is false on timeout or after close.
func (q *requestQueue) pop(timeout time.Duration) (queueItem, bool) {
	if timeout <= 0 {
		it, ok := <-q.ch
		return it, ok
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case it, ok := <-q.ch:
		return it, ok
	case <-t.C:
		return queueItem{}, false
	}
}

// items exposes the channel for range-based draining by workers; the
// range ends when the queue is closed and empty.
func (q *requestQueue) items() <-chan queueItem {
	return q.ch
}

func (q *requestQueue) close() {
	close(q.ch)
}

func (q *requestQueue) depth() int {
	return len(q.ch)
}
