// Package worker moves slow audit sinks off the append path.
package worker

import (
	"context"
	"io"
	"log/slog"
	"time"

	audit "regassist/pkg/platform/audit"
)

const (
	defaultBatchSize    = 64
	defaultDrainTimeout = 5 * time.Second
)

// Worker buffers appended items and forwards them to a sink in the
// background. It implements audit.Sink, so a Log hands items to it without
// waiting for the downstream broker.
type Worker struct {
	sink      audit.Sink
	buffer    *RingBuffer
	notify    chan struct{}
	logger    *slog.Logger
	batchSize int
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger for forwarding failures.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithBatchSize sets how many items are forwarded per wake-up.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// NewWorker creates a worker with a buffer of the given capacity.
func NewWorker(sink audit.Sink, capacity int, opts ...Option) *Worker {
	w := &Worker{
		sink:      sink,
		buffer:    NewRingBuffer(capacity),
		notify:    make(chan struct{}, 1),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Publish queues the item and returns immediately.
func (w *Worker) Publish(_ context.Context, item audit.Item) error {
	w.buffer.Enqueue(item)
	select {
	case w.notify <- struct{}{}:
	default:
	}
	return nil
}

// Run forwards queued items until ctx is done, then drains what is left
// within a bounded grace period.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDrainTimeout)
			w.flush(drainCtx)
			cancel()
			return ctx.Err()
		case <-w.notify:
			w.flush(ctx)
		}
	}
}

func (w *Worker) flush(ctx context.Context) {
	for {
		batch := w.buffer.DequeueBatch(w.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, item := range batch {
			if err := w.sink.Publish(ctx, item); err != nil {
				w.logger.WarnContext(ctx, "audit forward failed",
					"audit_id", item.ID,
					"action", item.Action,
					"error", err,
				)
			}
		}
	}
}

// Pending returns the number of items waiting to be forwarded.
func (w *Worker) Pending() int {
	return w.buffer.Len()
}

// Dropped returns the number of items lost to buffer overflow.
func (w *Worker) Dropped() int64 {
	return w.buffer.Dropped()
}
