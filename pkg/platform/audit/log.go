package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"math"
	"sync"
	"time"

	dErrors "regassist/pkg/domain-errors"
	"regassist/pkg/platform/sentinel"
)

const (
	defaultPageSize = 100
	// maxAppendAttempts bounds retries when another writer advanced the chain.
	maxAppendAttempts = 3
)

// Log is the append-only audit trail. Appends are serialized; queries read
// the store without taking the append lock.
type Log struct {
	store    Store
	sinks    []Sink
	now      func() time.Time
	logger   *slog.Logger
	metrics  *Metrics
	pageSize int

	mu   sync.Mutex
	head *Item // last appended item; nil until loaded from the store
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(l *Log) {
		l.metrics = m
	}
}

// WithSink forwards every appended item to s. Sink failures are logged and
// never fail the append: the store is the system of record.
func WithSink(s Sink) Option {
	return func(l *Log) {
		l.sinks = append(l.sinks, s)
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// WithPageSize sets how many items a query fetches per store round trip.
func WithPageSize(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// New creates a log over store.
func New(store Store, opts ...Option) *Log {
	l := &Log{
		store:    store,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records e and returns the stored item. The id is one past the last
// stored id and the timestamp is strictly after the previous item's, so an
// append that returns before another begins always precedes it in queries.
func (l *Log) Append(ctx context.Context, e Entry) (Item, error) {
	if e.Action == "" {
		return Item{}, dErrors.New(dErrors.CodeValidation, "audit entry requires an action")
	}
	if e.Actor == "" {
		return Item{}, dErrors.New(dErrors.CodeValidation, "audit entry requires an actor")
	}
	start := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		item Item
		err  error
	)
	for range maxAppendAttempts {
		item, err = l.appendLocked(ctx, e)
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
	}
	if err != nil {
		l.metrics.incAppendFailure()
		l.logger.ErrorContext(ctx, "audit append failed",
			"action", e.Action,
			"resource_id", e.ResourceID,
			"error", err,
		)
		return Item{}, storeError(err, "audit append failed")
	}
	l.metrics.observeAppend(item.Action, time.Since(start))

	for _, s := range l.sinks {
		if err := s.Publish(ctx, item); err != nil {
			l.metrics.incSinkFailure()
			l.logger.WarnContext(ctx, "audit sink publish failed",
				"audit_id", item.ID,
				"action", item.Action,
				"error", err,
			)
		}
	}
	return item, nil
}

func (l *Log) appendLocked(ctx context.Context, e Entry) (Item, error) {
	if l.head == nil {
		last, ok, err := l.store.Last(ctx)
		if err != nil {
			return Item{}, fmt.Errorf("load audit head: %w", err)
		}
		l.head = &Item{}
		if ok {
			l.head = &last
		}
	}

	ts := l.now().UTC().Truncate(time.Microsecond)
	if !l.head.Timestamp.IsZero() && !ts.After(l.head.Timestamp) {
		ts = l.head.Timestamp.Add(time.Microsecond)
	}
	item := Item{
		ID:         l.head.ID + 1,
		Timestamp:  ts,
		Action:     e.Action,
		Actor:      e.Actor,
		Role:       e.Role,
		ResourceID: e.ResourceID,
		Details:    maps.Clone(e.Details),
		RequestID:  e.RequestID,
		Client:     e.Client,
		PrevHash:   l.head.Hash,
	}
	item.Hash = ComputeHash(item)

	if err := l.store.Append(ctx, item); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// another writer advanced the chain; reload the head on retry
			l.head = nil
		}
		return Item{}, fmt.Errorf("append audit item %d: %w", item.ID, err)
	}
	l.head = &item
	return item, nil
}

// Query returns matching items, newest first. The sequence is lazy (the
// store is paged as it is consumed) and restartable: each range starts a
// fresh read. A store error is yielded once and ends the sequence.
func (l *Log) Query(ctx context.Context, f Filter) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		before := uint64(math.MaxUint64)
		yielded := 0
		for {
			size := l.pageSize
			if f.Limit > 0 && f.Limit-yielded < size {
				size = f.Limit - yielded
			}
			page, err := l.store.Page(ctx, f, before, size)
			if err != nil {
				yield(Item{}, storeError(fmt.Errorf("query audit items: %w", err), "audit query failed"))
				return
			}
			for _, it := range page {
				if !yield(it, nil) {
					return
				}
				yielded++
			}
			if len(page) < size || (f.Limit > 0 && yielded >= f.Limit) {
				return
			}
			before = page[len(page)-1].ID
		}
	}
}

// storeError codes the storage facts a caller can act on. Other failures
// stay uncoded and surface as internal errors.
func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return err
}

// Collect drains a query into a slice.
func Collect(seq iter.Seq2[Item, error]) ([]Item, error) {
	var items []Item
	for it, err := range seq {
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Verify walks the whole stored chain, newest first, and returns the number
// of items checked. A *ChainError reports tampering or gaps.
func (l *Log) Verify(ctx context.Context) (int, error) {
	var (
		newer   *Item
		checked int
	)
	for it, err := range l.Query(ctx, Filter{}) {
		if err != nil {
			return checked, err
		}
		if ComputeHash(it) != it.Hash {
			return checked, &ChainError{ID: it.ID, Reason: "content does not match hash"}
		}
		if newer != nil {
			if newer.ID != it.ID+1 {
				return checked, &ChainError{ID: newer.ID, Reason: fmt.Sprintf("gap after item %d", it.ID)}
			}
			if newer.PrevHash != it.Hash {
				return checked, &ChainError{ID: newer.ID, Reason: "previous hash mismatch"}
			}
			if !newer.Timestamp.After(it.Timestamp) {
				return checked, &ChainError{ID: newer.ID, Reason: "timestamp not after predecessor"}
			}
		}
		checked++
		cur := it
		newer = &cur
	}
	if newer != nil && (newer.ID != 1 || newer.PrevHash != "") {
		return checked, &ChainError{ID: newer.ID, Reason: "chain does not start at item 1"}
	}
	return checked, nil
}
