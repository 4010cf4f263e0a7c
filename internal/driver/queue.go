package driver

import (
	"context"
	"sync"
)

// EventQueue is an unbounded FIFO between a producer that must never block
// (a CDP event callback) and the PageEvents channel. Close ends the stream
// once queued events have been consumed; cancelling ctx abandons them.
type EventQueue struct {
	in   chan PageEvent
	out  chan PageEvent
	ctx  context.Context
	once sync.Once
}

// NewEventQueue starts the queue's pump goroutine, which exits when the
// queue is closed and drained, or when ctx is done.
func NewEventQueue(ctx context.Context) *EventQueue {
	q := &EventQueue{
		in:  make(chan PageEvent),
		out: make(chan PageEvent),
		ctx: ctx,
	}
	go q.pump()
	return q
}

// Push enqueues ev. It returns false once the queue is closed or ctx is done.
func (q *EventQueue) Push(ev PageEvent) (ok bool) {
	defer func() {
		// Push after Close.
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case q.in <- ev:
		return true
	case <-q.ctx.Done():
		return false
	}
}

// Close marks the end of the stream.
func (q *EventQueue) Close() {
	q.once.Do(func() { close(q.in) })
}

// Events is the consumer side.
func (q *EventQueue) Events() <-chan PageEvent {
	return q.out
}

func (q *EventQueue) pump() {
	defer close(q.out)

	in := q.in
	var queue []PageEvent
	for in != nil || len(queue) > 0 {
		var send chan PageEvent
		var next PageEvent
		if len(queue) > 0 {
			send = q.out
			next = queue[0]
		}

		select {
		case ev, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			queue = append(queue, ev)
		case send <- next:
			queue[0] = nil
			queue = queue[1:]
		case <-q.ctx.Done():
			return
		}
	}
}
