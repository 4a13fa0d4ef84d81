package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wagiedev/forkcheck-go/internal/errors"
)

// Sink is the transport the queue drains into.
type Sink interface {
	SendMessage(ctx context.Context, data []byte) error
}

// queued is a message waiting to be written.
type queued struct {
	data  []byte
	onErr func(error)
}

// QueuedSender buffers outbound messages and delivers them in FIFO order.
type QueuedSender struct {
	log  *slog.Logger
	sink Sink

	mu     sync.Mutex
	queue  []queued
	ready  bool
	closed bool
	wake   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueuedSender creates a sender draining into sink.
// The drain goroutine starts immediately but writes nothing until MarkReady.
func NewQueuedSender(log *slog.Logger, sink Sink) *QueuedSender {
	ctx, cancel := context.WithCancel(context.Background())

	q := &QueuedSender{
		log:    log.With("component", "channel"),
		sink:   sink,
		queue:  make([]queued, 0, 16),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	q.wg.Add(1)

	go q.drain()

	return q
}

// Send enqueues data for delivery. It never blocks on the transport.
//
// If the write later fails, onErr (when non-nil) is invoked with the error
// from the drain goroutine. Send returns ErrChannelClosed after Close.
func (q *QueuedSender) Send(data []byte, onErr func(error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.ErrChannelClosed
	}

	q.queue = append(q.queue, queued{data: data, onErr: onErr})

	if !q.ready {
		q.log.Debug("Buffering message until transport is ready", "queued", len(q.queue))
	}

	q.signal()

	return nil
}

// MarkReady allows the drain goroutine to start writing.
func (q *QueuedSender) MarkReady() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ready {
		return
	}

	q.ready = true
	q.log.Debug("Transport ready, flushing queue", "queued", len(q.queue))
	q.signal()
}

// Pending returns the number of messages not yet written.
func (q *QueuedSender) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.queue)
}

// Close stops the drain goroutine. Messages still queued are discarded and
// their onErr callbacks receive ErrChannelClosed. Safe to call multiple times.
func (q *QueuedSender) Close() {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return
	}

	q.closed = true
	dropped := q.queue
	q.queue = nil
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()

	if len(dropped) > 0 {
		q.log.Debug("Discarding unsent messages", "count", len(dropped))
	}

	for _, m := range dropped {
		if m.onErr != nil {
			m.onErr(errors.ErrChannelClosed)
		}
	}
}

// signal wakes the drain goroutine. Caller must hold q.mu.
func (q *QueuedSender) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next pops the head of the queue if the sender is ready.
func (q *QueuedSender) next() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.ready || q.closed || len(q.queue) == 0 {
		return queued{}, false
	}

	m := q.queue[0]
	q.queue[0] = queued{}
	q.queue = q.queue[1:]

	return m, true
}

func (q *QueuedSender) drain() {
	defer q.wg.Done()
	defer q.log.Debug("Drain goroutine stopped")

	for {
		for {
			m, ok := q.next()
			if !ok {
				break
			}

			if err := q.sink.SendMessage(q.ctx, m.data); err != nil {
				q.log.Error("Failed to deliver message", "error", err)

				if m.onErr != nil {
					m.onErr(err)
				}
			}
		}

		select {
		case <-q.wake:
		case <-q.ctx.Done():
			return
		}
	}
}
