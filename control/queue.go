// SPDX-License-Identifier: EPL-2.0

// Package control is the message-passing boundary between the real-time
// audio goroutine and the control-rate goroutines.
//
// A Queue is a bounded channel that is only ever used with select/default,
// so neither side can block on the other. The real-time side uses TryPush and
// TryPop, which never log or allocate. Control-rate producers use Push, which
// logs a warning when a message is dropped.
package control

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Queue is a bounded, non-blocking FIFO. It is safe for many producers and
// one consumer.
type Queue[T any] struct {
	name    string
	ch      chan T
	dropped atomic.Uint64
}

// NewQueue returns a queue holding at most capacity messages. name tags its
// log lines.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Queue[T]{name: name, ch: make(chan T, capacity)}
}

// TryPush enqueues v unless the queue is full. It never blocks.
func (q *Queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Push is TryPush for control-rate callers: a drop is logged.
func (q *Queue[T]) Push(v T) bool {
	if q.TryPush(v) {
		return true
	}

	logrus.WithFields(logrus.Fields{
		"function": "Queue.Push",
		"queue":    q.name,
		"capacity": cap(q.ch),
		"dropped":  q.dropped.Load(),
	}).Warn("queue full, message dropped")

	return false
}

// TryPop dequeues one message if any is waiting. It never blocks.
func (q *Queue[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for control-rate select loops.
func (q *Queue[T]) C() <-chan T { return q.ch }

func (q *Queue[T]) Len() int { return len(q.ch) }
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Dropped counts messages rejected because the queue was full.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }
