// Package publisher decouples event emission from sink delivery. The default
// mode is synchronous; an async buffer can be enabled where emitters must not
// wait on the sink.
package publisher

import (
	"log/slog"
	"sync"

	"tenderwatch/pkg/platform/audit"
)

// Publisher forwards audit events to a sink, optionally through a buffered
// channel drained by a background worker.
type Publisher struct {
	sink   audit.Sink
	logger *slog.Logger

	events chan audit.Event
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery through a channel of the given
// capacity. When the buffer is full events are dropped, not blocked on.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.events = make(chan audit.Event, size)
	}
}

// NewPublisher constructs a publisher over the given sink.
func NewPublisher(sink audit.Sink, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.events != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit delivers the event to the sink. Delivery failures are logged, never
// propagated: auditing must not fail the audited action.
func (p *Publisher) Emit(event audit.Event) {
	if p == nil || p.sink == nil {
		return
	}
	if p.events != nil {
		select {
		case p.events <- event:
		default:
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
		return
	}
	p.publish(event)
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		p.publish(event)
	}
}

func (p *Publisher) publish(event audit.Event) {
	if err := p.sink.Publish(event); err != nil {
		p.logger.Warn("audit publish failed",
			"action", event.Action,
			"error", err,
		)
	}
}

// Close stops the async worker (if any) and closes the sink.
func (p *Publisher) Close() error {
	if p == nil || p.sink == nil {
		return nil
	}
	var err error
	p.closeOnce.Do(func() {
		if p.events != nil {
			close(p.events)
			p.wg.Wait()
		}
		err = p.sink.Close()
	})
	return err
}
