package publisher

import (
	"context"
	"log/slog"
	"time"

	audit "subsidyledger/pkg/platform/audit"

	"golang.org/x/sync/errgroup"
)

// Publisher delivers audit events to a store. In sync mode Emit appends
// inline; with an async buffer Emit enqueues and a background goroutine
// drains, so the payment critical section never blocks on audit I/O.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox  chan audit.Event
	cancel context.CancelFunc
	group  *errgroup.Group
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// channel capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	if p.inbox != nil {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.group, ctx = errgroup.WithContext(ctx)
		p.group.Go(func() error {
			return p.drain(ctx)
		})
	}
	return p
}

// Emit records an event. A zero timestamp is stamped here so callers can
// leave it to the publisher outside request scope.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	default:
		// Buffer full: fall back to a synchronous append rather than
		// dropping a compliance event.
		p.logger.Warn("audit buffer full, appending synchronously", "action", event.Action)
		return p.store.Append(ctx, event)
	}
}

func (p *Publisher) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Flush whatever is left before exiting.
			for {
				select {
				case event := <-p.inbox:
					if err := p.store.Append(context.Background(), event); err != nil {
						p.logger.Error("audit append during shutdown", "error", err)
					}
				default:
					return nil
				}
			}
		case event := <-p.inbox:
			if err := p.store.Append(ctx, event); err != nil {
				p.logger.Error("audit append", "action", event.Action, "error", err)
			}
		}
	}
}

// Close stops the async drain, flushing buffered events first.
func (p *Publisher) Close() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return p.group.Wait()
}
