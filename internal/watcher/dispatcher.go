package watcher

import (
	"context"
	"time"

	"github.com/fenilsonani/dataguard/internal/logging"
)

// Sink receives each non-empty batch of dispatched events
type Sink interface {
	Deliver(ctx context.Context, events []Event) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, events []Event) error

// Deliver calls f
func (f SinkFunc) Deliver(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// Dispatcher periodically moves stable events from the queue to a sink
type Dispatcher struct {
	queue    *Queue
	sink     Sink
	interval time.Duration
	debounce time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher polling queue every interval
func NewDispatcher(queue *Queue, sink Sink, interval, debounce time.Duration, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		sink:     sink,
		interval: interval,
		debounce: debounce,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}
}

// SetClock overrides the clock used to age queued events
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Run polls until ctx is cancelled. Events still younger than the debounce
// window at that point stay in the queue.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := d.Pass(ctx); err != nil {
				d.logger.Warn("Event delivery failed: %v", err)
			}
		}
	}
}

// Pass drains the stable events once and delivers them, returning how many
// were handed to the sink. A batch the sink rejects goes back to the front of
// the queue and is retried on the next pass.
func (d *Dispatcher) Pass(ctx context.Context) (int, error) {
	events := d.queue.DrainStable(d.now(), d.debounce)
	if len(events) == 0 {
		return 0, nil
	}
	d.logger.Debug("Dispatching %d events", len(events))
	if err := d.sink.Deliver(ctx, events); err != nil {
		d.queue.Requeue(events)
		return 0, err
	}
	return len(events), nil
}

// ChannelSink buffers dispatched batches for a consumer that pulls them with Next
type ChannelSink struct {
	ch chan []Event
}

// NewChannelSink creates a sink holding up to size undelivered batches
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan []Event, size)}
}

// Deliver blocks until the batch is buffered or ctx ends
func (s *ChannelSink) Deliver(ctx context.Context, events []Event) error {
	select {
	case s.ch <- events:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next dispatched batch, waiting until one arrives or ctx ends
func (s *ChannelSink) Next(ctx context.Context) ([]Event, error) {
	select {
	case events := <-s.ch:
		return events, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryNext returns the next batch without waiting
func (s *ChannelSink) TryNext() ([]Event, bool) {
	select {
	case events := <-s.ch:
		return events, true
	default:
		return nil, false
	}
}
