package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"busrelay/internal/envelope"
	"busrelay/internal/logging"
	"busrelay/internal/secrets"
)

// Metadata keys set on every broker message.
const (
	metadataCorrelationID = "correlationId"
	metadataPayloadType   = "payloadType"
	metadataSender        = "sender"
)

// broker is what a transport has to provide. Publishers are shared and owned
// by the broker; subscribers are per Subscribe call and released by the
// returned func. A subscriber that hits faults in its own goroutines (failed
// reads, failed acks) passes them to faults so they reach the error handler.
type broker interface {
	publisher(ctx context.Context, p secrets.Profile) (message.Publisher, error)
	subscriber(ctx context.Context, p secrets.Profile, faults func(error)) (message.Subscriber, func() error, error)
	close() error
}

type brokerBus struct {
	kind        string
	broker      broker
	profiles    secrets.ProfileStore
	maxInFlight int
	logger      logging.Logger
	inst        *instruments

	mu     sync.Mutex
	closed bool
	subs   map[*Subscription]struct{}
}

func newBrokerBus(kind string, b broker, profiles secrets.ProfileStore, maxInFlight int, logger logging.Logger) *brokerBus {
	if maxInFlight < 1 {
		maxInFlight = defaultMaxInFlight
	}
	return &brokerBus{
		kind:        kind,
		broker:      b,
		profiles:    profiles,
		maxInFlight: maxInFlight,
		logger:      logger.With("component", "bus", "transport", kind),
		inst:        newInstruments(),
		subs:        make(map[*Subscription]struct{}),
	}
}

func (b *brokerBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *brokerBus) resolve(name string) (secrets.Profile, error) {
	p, err := b.profiles.ResolveProfile(name)
	if err != nil {
		return secrets.Profile{}, &ProfileResolutionError{Name: name, Err: err}
	}
	if p.Topic == "" {
		return secrets.Profile{}, &ProfileResolutionError{Name: name, Err: errors.New("profile has no topic")}
	}
	return p, nil
}

func (b *brokerBus) Publish(ctx context.Context, env envelope.Envelope) (err error) {
	if b.isClosed() {
		return ErrClosed
	}

	ctx, span := b.inst.tracer.Start(ctx, "bus.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", b.kind),
			attribute.String("bus.recipient", env.Recipient()),
			attribute.String("bus.correlation_id", env.CorrelationID().String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	profile, err := b.resolve(env.Recipient())
	if err != nil {
		return err
	}

	body, err := envelope.Encode(env)
	if err != nil {
		return err
	}

	pub, err := b.broker.publisher(ctx, profile)
	if err != nil {
		b.logger.Error("failed to connect publisher", "profile", profile.Name, "error", err)
		return &TransportError{Op: "connect", Topic: profile.Topic, Err: err}
	}

	msg := message.NewMessage(uuid.NewString(), body)
	msg.Metadata.Set(metadataCorrelationID, env.CorrelationID().String())
	msg.Metadata.Set(metadataPayloadType, env.PayloadType())
	msg.Metadata.Set(metadataSender, env.Sender())
	msg.SetContext(ctx)

	if err := pub.Publish(profile.Topic, msg); err != nil {
		b.logger.Error("failed to publish message",
			"topic", profile.Topic,
			"correlation_id", env.CorrelationID(),
			"error", err,
		)
		return &TransportError{Op: "publish", Topic: profile.Topic, Err: err}
	}

	add(ctx, b.inst.published, attribute.String("messaging.destination.name", profile.Topic))
	b.logger.Debug("published message",
		"topic", profile.Topic,
		"message_id", msg.UUID,
		"correlation_id", env.CorrelationID(),
	)
	return nil
}

func (b *brokerBus) Subscribe(ctx context.Context, endpoint string, onMessage Handler, onError ErrorHandler) (*Subscription, error) {
	if onMessage == nil {
		return nil, errors.New("subscribe: nil message handler")
	}
	if b.isClosed() {
		return nil, ErrClosed
	}

	profile, err := b.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s := newSubscription(subscriptionConfig{
		endpoint:    endpoint,
		topic:       profile.Topic,
		kind:        b.kind,
		maxInFlight: b.maxInFlight,
		onMessage:   onMessage,
		onError:     onError,
		cancel:      cancel,
		logger:      b.logger,
		inst:        b.inst,
	})

	sub, release, err := b.broker.subscriber(ctx, profile, s.fault)
	if err != nil {
		cancel()
		return nil, &TransportError{Op: "connect", Topic: profile.Topic, Err: err}
	}
	s.cfg.release = release

	messages, err := sub.Subscribe(loopCtx, profile.Topic)
	if err != nil {
		cancel()
		_ = release()
		return nil, &TransportError{Op: "subscribe", Topic: profile.Topic, Err: err}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		_ = release()
		return nil, ErrClosed
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		s.run(loopCtx, messages)
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
	}()

	b.logger.Info("subscribed",
		"endpoint", endpoint,
		"topic", profile.Topic,
		"subscription", profile.Subscription,
		"max_in_flight", b.maxInFlight,
	)
	return s, nil
}

func (b *brokerBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Stop(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", s.Endpoint(), err))
		}
	}
	if err := b.broker.close(); err != nil {
		errs = append(errs, err)
	}
	b.logger.Info("bus closed", "subscriptions", len(subs))
	return errors.Join(errs...)
}
