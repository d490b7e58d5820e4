package bus

import (
	"context"
	"errors"
	"sync"

	"busrelay/internal/envelope"
	"busrelay/internal/logging"
)

// stubBus only traces what it is asked to do. It is for offline development
// and never delivers anything; use the local transport to exercise delivery.
type stubBus struct {
	logger logging.Logger
	inst   *instruments

	mu     sync.Mutex
	closed bool
	subs   map[*Subscription]struct{}
}

func newStubBus(logger logging.Logger) *stubBus {
	return &stubBus{
		logger: logger.With("component", "bus", "transport", TransportStub),
		inst:   newInstruments(),
		subs:   make(map[*Subscription]struct{}),
	}
}

func (b *stubBus) Publish(ctx context.Context, env envelope.Envelope) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	b.logger.Info("stub bus publish, nothing sent",
		"sender", env.Sender(),
		"recipient", env.Recipient(),
		"payload_type", env.PayloadType(),
		"correlation_id", env.CorrelationID(),
	)
	return nil
}

func (b *stubBus) Subscribe(ctx context.Context, endpoint string, onMessage Handler, onError ErrorHandler) (*Subscription, error) {
	if onMessage == nil {
		return nil, errors.New("subscribe: nil message handler")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	b.logger.Info("stub bus subscribe, nothing will be delivered", "endpoint", endpoint)

	loopCtx, cancel := context.WithCancel(ctx)
	s := newSubscription(subscriptionConfig{
		endpoint:    endpoint,
		kind:        TransportStub,
		maxInFlight: 1,
		onMessage:   onMessage,
		onError:     onError,
		cancel:      cancel,
		logger:      b.logger,
		inst:        b.inst,
	})
	b.subs[s] = struct{}{}

	// A nil channel never yields, so the loop idles until stopped.
	go func() {
		s.run(loopCtx, nil)
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
	}()
	return s, nil
}

func (b *stubBus) active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *stubBus) Close() error {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Stop(context.Background())
	}
	return nil
}
