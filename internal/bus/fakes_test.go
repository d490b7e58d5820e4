package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"busrelay/internal/envelope"
	"busrelay/internal/logging"
	"busrelay/internal/secrets"
)

// fakeSubscriber hands out whatever the test pushes, without waiting for
// acks, so the loop's own concurrency is what gets measured.
type fakeSubscriber struct {
	ch     chan *message.Message
	closed chan struct{}
	once   sync.Once
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan *message.Message, 100), closed: make(chan struct{})}
}

func (f *fakeSubscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return f.ch, nil
}

func (f *fakeSubscriber) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	msgs   []*message.Message
	err    error
}

func (p *fakePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeBroker struct {
	pub     *fakePublisher
	sub     *fakeSubscriber
	dialErr error
	closed  bool
	faults  func(error)
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{pub: &fakePublisher{}, sub: newFakeSubscriber()}
}

func (f *fakeBroker) publisher(context.Context, secrets.Profile) (message.Publisher, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return f.pub, nil
}

func (f *fakeBroker) subscriber(_ context.Context, _ secrets.Profile, faults func(error)) (message.Subscriber, func() error, error) {
	f.faults = faults
	if f.dialErr != nil {
		return nil, nil, f.dialErr
	}
	return f.sub, f.sub.Close, nil
}

func (f *fakeBroker) close() error {
	f.closed = true
	return nil
}

func testProfiles() *secrets.StaticStore {
	return secrets.NewStaticStore(map[string]secrets.Profile{
		"A":       {Topic: "topic-a", Subscription: "sub-a"},
		"B":       {Topic: "topic-b", Subscription: "sub-b"},
		"B-audit": {Topic: "topic-b", Subscription: "sub-b-audit"},
		"orders":  {Topic: "orders", Subscription: "workers"},
		"notopic": {Subscription: "x"},
	})
}

func newFakeBus(maxInFlight int) (*brokerBus, *fakeBroker) {
	fb := newFakeBroker()
	return newBrokerBus("fake", fb, testProfiles(), maxInFlight, logging.NewNop()), fb
}

func wireMessage(t *testing.T, env envelope.Envelope) *message.Message {
	t.Helper()
	body, err := envelope.Encode(env)
	require.NoError(t, err)
	return message.NewMessage(uuid.NewString(), body)
}

type outcome int

const (
	pending outcome = iota
	acked
	nacked
)

func waitOutcome(t *testing.T, msg *message.Message) outcome {
	t.Helper()
	select {
	case <-msg.Acked():
		return acked
	case <-msg.Nacked():
		return nacked
	case <-time.After(5 * time.Second):
		t.Fatalf("message %s was neither acked nor nacked", msg.UUID)
		return pending
	}
}

type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) handle(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

var errBoom = errors.New("boom")
