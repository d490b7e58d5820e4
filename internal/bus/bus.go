// Package bus moves envelopes between parties over a pluggable broker.
//
// A Bus publishes an envelope to the topic named by its recipient's profile
// and subscribes handlers to the subscription named by an endpoint profile.
// Each subscription runs its own receive loop with a bounded number of
// concurrent handler invocations. A message is acknowledged only after its
// handler returns nil, so delivery is at-least-once.
//
// Transports:
//
//	stub   traces publish/subscribe calls, never moves data
//	local  in-process delivery (watermill gochannel)
//	kafka  Kafka topics, one consumer group per subscription
//	redis  Redis streams, one consumer group per subscription
package bus

import (
	"context"
	"fmt"

	"github.com/garsue/watermillzap"

	"busrelay/internal/config"
	"busrelay/internal/envelope"
	"busrelay/internal/logging"
	"busrelay/internal/secrets"
)

const (
	TransportStub  = "stub"
	TransportLocal = "local"
	TransportKafka = "kafka"
	TransportRedis = "redis"
)

const defaultMaxInFlight = 2

// Handler processes one delivered envelope. Returning an error abandons the
// message so the broker can redeliver it.
type Handler func(ctx context.Context, env envelope.Envelope) error

// ErrorHandler receives every error a subscription hits while running:
// undecodable messages, handler failures and transport faults. It must not
// block for long; the loop waits for it.
type ErrorHandler func(ctx context.Context, err error)

type Bus interface {
	// Publish sends env to the topic of env.Recipient()'s profile. Failures
	// are returned, never retried.
	Publish(ctx context.Context, env envelope.Envelope) error
	// Subscribe starts a receive loop on endpoint's subscription and returns
	// once the loop is registered. The loop runs until the Subscription is
	// stopped, ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context, endpoint string, onMessage Handler, onError ErrorHandler) (*Subscription, error)
	// Close stops every subscription, waits for in-flight handlers and
	// releases broker connections.
	Close() error
}

// New builds the Bus selected by cfg.Transport.
func New(cfg config.BusConfig, profiles secrets.ProfileStore, logger logging.Logger) (Bus, error) {
	wmlogger := watermillzap.NewLogger(logging.AsZap(logger))

	var b broker
	switch cfg.Transport {
	case TransportStub:
		return newStubBus(logger), nil
	case TransportLocal:
		b = newLocalBroker(cfg, wmlogger)
	case TransportKafka:
		b = newKafkaBroker(cfg, wmlogger)
	case TransportRedis:
		b = newRedisBroker(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown bus transport %q", cfg.Transport)
	}

	return newBrokerBus(cfg.Transport, b, profiles, cfg.MaxInFlight, logger), nil
}
