package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"busrelay/internal/bus"
	"busrelay/internal/cache"
	"busrelay/internal/envelope"
	"busrelay/internal/logging"
)

type Service interface {
	// Send wraps the input in a fresh envelope and publishes it.
	Send(ctx context.Context, input SendInput) (*SendResult, error)
	// Reply returns the last envelope received for correlationID.
	Reply(ctx context.Context, correlationID uuid.UUID) (*ReplyDto, error)
	// Handle processes one envelope delivered to the relay's endpoint.
	Handle(ctx context.Context, env envelope.Envelope) error
}

// Forwarder pushes received replies to an external system.
type Forwarder interface {
	Deliver(ctx context.Context, body any) error
}

type service struct {
	name      string
	publisher envelope.Publisher
	replies   cache.ReplyCache
	forwarder Forwarder // optional
	factory   envelope.Factory
	logger    logging.Logger
}

type Option func(*service)

// WithForwarder sends every received envelope to f after it is cached.
func WithForwarder(f Forwarder) Option {
	return func(s *service) { s.forwarder = f }
}

// WithFactory overrides the clock and id source used for outgoing envelopes.
func WithFactory(f envelope.Factory) Option {
	return func(s *service) { s.factory = f }
}

func NewService(
	name string,
	publisher envelope.Publisher,
	replies cache.ReplyCache,
	logger logging.Logger,
	opts ...Option,
) Service {
	s := &service{
		name:      name,
		publisher: publisher,
		replies:   replies,
		logger:    logger.With("component", "relay_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Send(ctx context.Context, input SendInput) (*SendResult, error) {
	recipient := strings.TrimSpace(input.Recipient)
	if recipient == "" {
		return nil, NewValidationError("recipient", "is required")
	}
	sender := strings.TrimSpace(input.Sender)
	if sender == "" {
		sender = s.name
	}

	var (
		payload     []byte
		payloadType = input.PayloadType
	)
	switch input.Encoding {
	case "", EncodingText:
		payload = []byte(input.Payload)
		if payloadType == "" {
			payloadType = envelope.TypeText
		}
	case EncodingBase64:
		raw, err := base64.StdEncoding.DecodeString(input.Payload)
		if err != nil {
			return nil, NewValidationError("payload", "is not valid base64")
		}
		payload = raw
		if payloadType == "" {
			payloadType = envelope.TypeBinary
		}
	default:
		return nil, NewValidationError("encoding", fmt.Sprintf("unsupported value %q", input.Encoding))
	}

	env := s.factory.New(payload, payloadType, sender, recipient)
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Error("failed to publish message",
			"error", err,
			"recipient", recipient,
			"correlation_id", env.CorrelationID(),
		)
		return nil, fmt.Errorf("publish to %s: %w", recipient, err)
	}

	s.logger.Info("message published",
		"sender", sender,
		"recipient", recipient,
		"payload_type", payloadType,
		"correlation_id", env.CorrelationID(),
	)
	return &SendResult{CorrelationID: env.CorrelationID(), TimeSent: env.TimeSent()}, nil
}

func (s *service) Reply(ctx context.Context, correlationID uuid.UUID) (*ReplyDto, error) {
	env, err := s.replies.Get(ctx, correlationID)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, NewReplyNotFoundError(correlationID.String())
		}
		s.logger.Error("failed to read reply cache", "error", err, "correlation_id", correlationID)
		return nil, fmt.Errorf("get reply: %w", err)
	}
	return toReplyDto(env), nil
}

// Handle caches env and forwards it. Any failure is returned so the bus
// abandons the message and it is delivered again.
func (s *service) Handle(ctx context.Context, env envelope.Envelope) error {
	if err := s.replies.Put(ctx, env); err != nil {
		return fmt.Errorf("cache reply: %w", err)
	}

	if s.forwarder != nil {
		if err := s.forwarder.Deliver(ctx, toReplyDto(env)); err != nil {
			return fmt.Errorf("forward reply: %w", err)
		}
	}

	s.logger.Debug("reply received",
		"sender", env.Sender(),
		"payload_type", env.PayloadType(),
		"correlation_id", env.CorrelationID(),
	)
	return nil
}

// Listen subscribes svc to endpoint on b. Subscription errors are logged;
// the bus already takes care of redelivery.
func Listen(ctx context.Context, b bus.Bus, endpoint string, svc Service, logger logging.Logger) (*bus.Subscription, error) {
	logger = logger.With("component", "relay_listener", "endpoint", endpoint)

	return b.Subscribe(ctx, endpoint, svc.Handle, func(_ context.Context, err error) {
		var he *bus.HandlerError
		if errors.As(err, &he) {
			logger.Warn("reply handling failed", "correlation_id", he.CorrelationID, "error", he.Err)
			return
		}
		logger.Error("subscription error", "error", err)
	})
}
