// Package worker drains the outbox and hands each message to a mailer.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/StoneBodini/Covid-19-Live-Analysis/internal/adapters/mail"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/logger"
	"github.com/StoneBodini/Covid-19-Live-Analysis/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 2
	sendTimeout         = 30 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Message abstracts what workers read off the queue.
type Message = mail.Message

// Queue defines how workers receive messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Message
}

// FailureHandler is told about every message that could not be sent.
type FailureHandler func(ctx context.Context, m Message, err error)

// Worker delivers queued messages.
type Worker interface {
	// Run delivers messages until the queue closes, ctx ends or Shutdown
	// is called.
	Run(ctx context.Context)

	// Shutdown stops the worker after the message in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over a Queue and a Mailer.
type InMemoryWorker struct {
	queue     Queue
	mailer    mail.Mailer
	name      string
	onFailure FailureHandler

	sent   atomic.Int64
	failed atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading q and sending with m.
func NewInMemoryWorker(q Queue, m mail.Mailer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		mailer:   m,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	messages := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			if err := w.deliver(ctx, m); err != nil {
				w.logger.Error(ctx, "mail delivery failed", logger.Error(err))
			}
		}
	}
}

func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Sent and Failed count this worker's outcomes.
func (w *InMemoryWorker) Sent() int64   { return w.sent.Load() }
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) deliver(ctx context.Context, m Message) error { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := w.mailer.Send(sendCtx, m)
	metrics.RecordMailLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		w.failed.Add(1)
		metrics.RecordMailFailed(string(m.Kind))
		metrics.RecordErrorByComponent("worker", "send_error")
		if w.onFailure != nil {
			w.onFailure(ctx, m, err)
		}
		return fmt.Errorf("send %s to %s: %w", m.ID, m.To, err)
	}

	w.sent.Add(1)
	metrics.RecordMailSent(string(m.Kind))
	w.logger.Debug(ctx, "mail sent",
		logger.String("id", m.ID),
		logger.String("kind", string(m.Kind)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers. opts apply to every worker.
func NewPool(workerCount int, q Queue, m mail.Mailer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, m, wopts...)
	}
	if len(p.workers) > 0 {
		p.logger = p.workers[0].logger
	}
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Sent totals delivered messages across workers.
func (p *Pool) Sent() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Sent()
	}
	return n
}

// Failed totals failed deliveries across workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes the queue and waits for the workers to send what is left.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut {
		return fmt.Errorf("outbox drain: %w", shutdownCtx.Err())
	}
	return nil
}
