package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"busrelay/internal/envelope"
	"busrelay/internal/logging"
)

var errChannelClosed = errors.New("subscription channel closed by transport")

type subscriptionConfig struct {
	endpoint    string
	topic       string
	kind        string
	maxInFlight int
	onMessage   Handler
	onError     ErrorHandler
	cancel      context.CancelFunc
	release     func() error
	logger      logging.Logger
	inst        *instruments
}

// Subscription is a running receive loop.
//
// Each message moves Receiving -> {Acked, Abandoned}: acked when the handler
// returns nil or when the message cannot be decoded (it would never succeed),
// abandoned (nacked) when the handler fails. Stop moves the loop to Stopped.
type Subscription struct {
	cfg   subscriptionConfig
	sem   *semaphore.Weighted
	wg    sync.WaitGroup
	attrs []attribute.KeyValue

	done       chan struct{}
	releaseErr error
}

func newSubscription(cfg subscriptionConfig) *Subscription {
	return &Subscription{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.maxInFlight)),
		attrs: []attribute.KeyValue{
			attribute.String("messaging.system", cfg.kind),
			attribute.String("messaging.destination.name", cfg.topic),
			attribute.String("bus.endpoint", cfg.endpoint),
		},
		done: make(chan struct{}),
	}
}

func (s *Subscription) Endpoint() string { return s.cfg.endpoint }
func (s *Subscription) Topic() string    { return s.cfg.topic }

// Done is closed once the loop has stopped and its resources are released.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Stop stops taking new messages, waits for in-flight handlers to finish and
// releases the transport subscriber. If ctx expires first the loop keeps
// draining in the background and ctx.Err() is returned.
func (s *Subscription) Stop(ctx context.Context) error {
	s.cfg.cancel()
	select {
	case <-s.done:
		return s.releaseErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscription) run(ctx context.Context, messages <-chan *message.Message) {
	defer close(s.done)

	// Handlers outlive Stop: they see the loop's values but not its cancellation.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			break
		}

		var (
			msg *message.Message
			ok  bool
		)
		select {
		case <-ctx.Done():
		case msg, ok = <-messages:
		}

		if ctx.Err() != nil {
			s.sem.Release(1)
			if msg != nil {
				msg.Nack()
			}
			break
		}
		if !ok {
			s.sem.Release(1)
			s.report(handlerCtx, &TransportError{Op: "receive", Topic: s.cfg.topic, Err: errChannelClosed})
			break
		}

		s.wg.Add(1)
		go func(msg *message.Message) {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.handle(handlerCtx, msg)
		}(msg)
	}

	s.wg.Wait()
	if s.cfg.release != nil {
		s.releaseErr = s.cfg.release()
	}
	s.cfg.logger.Info("subscription stopped", "endpoint", s.cfg.endpoint, "topic", s.cfg.topic)
}

func (s *Subscription) handle(ctx context.Context, msg *message.Message) {
	ctx, span := s.cfg.inst.tracer.Start(ctx, "bus.handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(s.attrs...),
		trace.WithAttributes(attribute.String("messaging.message.id", msg.UUID)),
	)
	defer span.End()

	add(ctx, s.cfg.inst.received, s.attrs...)

	env, err := envelope.Decode(msg.Payload)
	if err != nil {
		// A message that cannot be decoded will never decode; ack it so it
		// does not block the subscription.
		msg.Ack()
		add(ctx, s.cfg.inst.acked, s.attrs...)
		span.SetStatus(codes.Error, "decode failed")
		s.report(ctx, fmt.Errorf("message %s on %s: %w", msg.UUID, s.cfg.topic, err))
		return
	}

	span.SetAttributes(attribute.String("bus.correlation_id", env.CorrelationID().String()))

	if err := s.invoke(ctx, env); err != nil {
		msg.Nack()
		add(ctx, s.cfg.inst.abandoned, s.attrs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		s.report(ctx, &HandlerError{Endpoint: s.cfg.endpoint, CorrelationID: env.CorrelationID(), Err: err})
		return
	}

	msg.Ack()
	add(ctx, s.cfg.inst.acked, s.attrs...)
}

func (s *Subscription) invoke(ctx context.Context, env envelope.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.cfg.onMessage(ctx, env)
}

// fault reports a transport error raised outside the receive loop, e.g. by a
// broker's background reader. Faults after the loop has stopped are dropped.
func (s *Subscription) fault(err error) {
	select {
	case <-s.done:
		return
	default:
	}
	s.report(context.Background(), err)
}

// report hands err to the error callback. A misbehaving callback is logged
// and otherwise ignored so the loop survives it.
func (s *Subscription) report(ctx context.Context, err error) {
	add(ctx, s.cfg.inst.errors, s.attrs...)
	s.cfg.logger.Warn("subscription error", "endpoint", s.cfg.endpoint, "error", err)

	if s.cfg.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.cfg.logger.Error("error handler panicked", "endpoint", s.cfg.endpoint, "panic", r)
		}
	}()
	s.cfg.onError(ctx, err)
}
