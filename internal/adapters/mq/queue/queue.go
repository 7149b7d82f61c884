// Package queue is the bounded in-memory outbox that holds emails until a
// worker delivers them.
package queue

import (
	"context"
	"sync"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mail"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

const defaultQueueCapacity = 1000

// Message is the payload flowing through the queue.
type Message = mail.Message

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds m without blocking. It returns ErrQueueFull when the
	// queue is at capacity and ErrQueueClosed after Close.
	Enqueue(ctx context.Context, m Message) error

	// Dequeue returns the channel workers read from. It is closed, after
	// the remaining messages, once the queue is closed.
	Dequeue(ctx context.Context) <-chan Message

	// Len returns the number of queued messages.
	Len(ctx context.Context) int

	// Cap returns the configured capacity.
	Cap() int

	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates an empty queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	metrics.UpdateOutboxCapacity(q.capacity)
	metrics.UpdateOutboxSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) error { //nolint:gocritic // hugeParam: copied onto the channel anyway
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordOutboxRejected("closed")
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordOutboxRejected("context_cancelled")
		return err
	}

	select {
	case q.messages <- m:
		metrics.RecordOutboxEnqueue()
		metrics.UpdateOutboxSize(len(q.messages))
		return nil
	default:
		metrics.RecordOutboxRejected("full")
		metrics.RecordErrorByComponent("outbox", "queue_full")
		return ErrQueueFull
	}
}

func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Message {
	return q.messages
}

func (q *InMemoryQueue) Len(_ context.Context) int {
	n := len(q.messages)
	metrics.UpdateOutboxSize(n)
	return n
}

func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops new enqueues. Queued messages stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
