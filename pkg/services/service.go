package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/signoff/pkg/eventbus"
	"github.com/dukex/signoff/pkg/events"
	"github.com/dukex/signoff/pkg/log"
	"github.com/dukex/signoff/pkg/otelhelper"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
)

// Option customises a service.
type Option func(*base)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = now
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *base) {
		b.tracer = tracer
	}
}

// WithLogger sets the fallback logger when the context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// base holds what every service needs. A nil publisher disables notifications.
type base struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
}

func newBase(p persistence.Persistence, publisher eventbus.EventPublisher, module string, opts []Option) base {
	b := base{
		persistence: p,
		publisher:   publisher,
		tracer:      otelhelper.NoopTracer(),
		logger:      log.WithModule(module),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

func (b *base) clock() time.Time {
	return b.now().UTC()
}

func (b *base) log(ctx context.Context) *slog.Logger {
	return log.FromContext(ctx, b.logger)
}

func (b *base) eventBase(eventType events.EventType, actor string, now time.Time) events.BaseEvent {
	return events.BaseEvent{
		ID:        newEventID(),
		Type:      eventType,
		Timestamp: now,
		Actor:     actor,
	}
}

// emit publishes after the state change has been committed. Delivery failures
// are logged and never undo the change.
func (b *base) emit(ctx context.Context, key string, event eventbus.Event) {
	if b.publisher == nil {
		return
	}

	err := b.publisher.Publish(ctx, key, event)
	if err != nil {
		b.log(ctx).ErrorContext(ctx, "failed to publish event", "event_type", event.GetType(), "key", key, "error", err)

		return
	}

	b.log(ctx).DebugContext(ctx, "event published", "event_type", event.GetType(), "key", key)
}
