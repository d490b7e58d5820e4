package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busrelay/internal/config"
	"busrelay/internal/envelope"
	"busrelay/internal/logging"
	"busrelay/internal/secrets"
)

func TestPublishResolvesRecipientTopic(t *testing.T) {
	b, fb := newFakeBus(2)
	env := envelope.NewText("ping", "A", "B")

	require.NoError(t, b.Publish(context.Background(), env))

	require.Len(t, fb.pub.msgs, 1)
	assert.Equal(t, "topic-b", fb.pub.topics[0])
	msg := fb.pub.msgs[0]
	assert.Equal(t, env.CorrelationID().String(), msg.Metadata.Get(metadataCorrelationID))
	assert.Equal(t, envelope.TypeText, msg.Metadata.Get(metadataPayloadType))
	assert.Equal(t, "A", msg.Metadata.Get(metadataSender))

	got, err := envelope.Decode(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, env.CorrelationID(), got.CorrelationID())
}

func TestPublishErrors(t *testing.T) {
	t.Run("unknown recipient", func(t *testing.T) {
		b, fb := newFakeBus(2)
		err := b.Publish(context.Background(), envelope.NewText("x", "A", "nobody"))
		require.Error(t, err)
		assert.True(t, IsProfileResolution(err))
		assert.ErrorIs(t, err, secrets.ErrProfileNotFound)
		assert.Empty(t, fb.pub.msgs)
	})

	t.Run("profile without topic", func(t *testing.T) {
		b, _ := newFakeBus(2)
		err := b.Publish(context.Background(), envelope.NewText("x", "A", "notopic"))
		assert.True(t, IsProfileResolution(err))
	})

	t.Run("connect failure", func(t *testing.T) {
		b, fb := newFakeBus(2)
		fb.dialErr = errors.New("dial tcp: refused")
		err := b.Publish(context.Background(), envelope.NewText("x", "A", "B"))
		require.Error(t, err)
		assert.True(t, IsTransport(err))
		assert.ErrorIs(t, err, fb.dialErr)
	})

	t.Run("send failure", func(t *testing.T) {
		b, fb := newFakeBus(2)
		fb.pub.err = errors.New("not authorized")
		err := b.Publish(context.Background(), envelope.NewText("x", "A", "B"))
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "publish", te.Op)
		assert.Equal(t, "topic-b", te.Topic)
	})
}

func TestSubscribeErrors(t *testing.T) {
	b, fb := newFakeBus(2)
	noop := func(context.Context, envelope.Envelope) error { return nil }

	_, err := b.Subscribe(context.Background(), "nobody", noop, nil)
	assert.True(t, IsProfileResolution(err))

	_, err = b.Subscribe(context.Background(), "A", nil, nil)
	assert.Error(t, err)

	fb.dialErr = errors.New("no route")
	_, err = b.Subscribe(context.Background(), "A", noop, nil)
	assert.True(t, IsTransport(err))
}

func TestCloseStopsSubscriptionsAndRejectsCalls(t *testing.T) {
	b, fb := newFakeBus(2)

	sub, err := b.Subscribe(context.Background(), "A", func(context.Context, envelope.Envelope) error { return nil }, nil)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	<-sub.Done()
	assert.True(t, fb.closed)

	assert.ErrorIs(t, b.Publish(context.Background(), envelope.NewText("x", "A", "B")), ErrClosed)
	_, err = b.Subscribe(context.Background(), "A", func(context.Context, envelope.Envelope) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, b.Close())
}

func TestNewSelectsTransport(t *testing.T) {
	profiles := testProfiles()
	for _, kind := range []string{TransportStub, TransportLocal, TransportKafka, TransportRedis} {
		b, err := New(config.BusConfig{Transport: kind, MaxInFlight: 2, LocalBuffer: 8}, profiles, logging.NewNop())
		require.NoError(t, err, kind)
		require.NoError(t, b.Close(), kind)
	}

	_, err := New(config.BusConfig{Transport: "carrier-pigeon"}, profiles, logging.NewNop())
	assert.Error(t, err)
}

func TestStubBusNeverDelivers(t *testing.T) {
	b, err := New(config.BusConfig{Transport: TransportStub}, testProfiles(), logging.NewNop())
	require.NoError(t, err)

	delivered := make(chan struct{}, 1)
	sub, err := b.Subscribe(context.Background(), "B", func(context.Context, envelope.Envelope) error {
		delivered <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	// Unknown recipients are fine too: the stub resolves nothing.
	require.NoError(t, b.Publish(context.Background(), envelope.NewText("ping", "A", "B")))
	require.NoError(t, b.Publish(context.Background(), envelope.NewText("ping", "A", "nobody")))

	select {
	case <-delivered:
		t.Fatal("stub bus delivered a message")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, sub.Stop(context.Background()))
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(context.Background(), envelope.NewText("ping", "A", "B")), ErrClosed)
}

func TestStubBusRejectsNilHandler(t *testing.T) {
	b := newStubBus(logging.NewNop())
	t.Cleanup(func() { _ = b.Close() })

	_, err := b.Subscribe(context.Background(), "B", nil, nil)
	assert.Error(t, err)
	assert.Zero(t, b.active())
}

func TestStubBusForgetsCancelledSubscriptions(t *testing.T) {
	b := newStubBus(logging.NewNop())
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, "B", func(context.Context, envelope.Envelope) error { return nil }, nil)
	require.NoError(t, err)
	kept, err := b.Subscribe(context.Background(), "B", func(context.Context, envelope.Envelope) error { return nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, b.active())

	cancel()
	<-sub.Done()
	assert.Eventually(t, func() bool { return b.active() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, kept.Stop(context.Background()))
	assert.Eventually(t, func() bool { return b.active() == 0 }, time.Second, 5*time.Millisecond)
}

func newLocalBus(t *testing.T) Bus {
	t.Helper()
	b, err := New(config.BusConfig{Transport: TransportLocal, MaxInFlight: 2, LocalBuffer: 16}, testProfiles(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestLocalRequestResponse(t *testing.T) {
	b := newLocalBus(t)
	ctx := context.Background()

	// B answers every request with "pong".
	_, err := b.Subscribe(ctx, "B", func(ctx context.Context, req envelope.Envelope) error {
		resp, err := req.CreateResponse("pong")
		if err != nil {
			return err
		}
		return b.Publish(ctx, resp)
	}, nil)
	require.NoError(t, err)

	replies := make(chan envelope.Envelope, 1)
	_, err = b.Subscribe(ctx, "A", func(_ context.Context, env envelope.Envelope) error {
		replies <- env
		return nil
	}, nil)
	require.NoError(t, err)

	req, err := envelope.CreateMessage("ping", "A", "B")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, req))

	select {
	case reply := <-replies:
		assert.Equal(t, "B", reply.Sender())
		assert.Equal(t, "A", reply.Recipient())
		text, ok := reply.Text()
		require.True(t, ok)
		assert.Equal(t, "pong", text)
		assert.Equal(t, req.CorrelationID(), reply.CorrelationID())
	case <-time.After(5 * time.Second):
		t.Fatal("no reply received")
	}
}

func TestLocalFanOutToEverySubscription(t *testing.T) {
	b := newLocalBus(t)
	ctx := context.Background()

	main := make(chan envelope.Envelope, 1)
	audit := make(chan envelope.Envelope, 1)
	_, err := b.Subscribe(ctx, "B", func(_ context.Context, env envelope.Envelope) error {
		main <- env
		return nil
	}, nil)
	require.NoError(t, err)
	_, err = b.Subscribe(ctx, "B-audit", func(_ context.Context, env envelope.Envelope) error {
		audit <- env
		return nil
	}, nil)
	require.NoError(t, err)

	env := envelope.NewText("hello", "A", "B")
	require.NoError(t, b.Publish(ctx, env))

	for _, ch := range []chan envelope.Envelope{main, audit} {
		select {
		case got := <-ch:
			assert.Equal(t, env.CorrelationID(), got.CorrelationID())
		case <-time.After(5 * time.Second):
			t.Fatal("subscription missed the message")
		}
	}
}

func TestLocalRedeliversAbandonedMessage(t *testing.T) {
	b := newLocalBus(t)
	ctx := context.Background()
	rec := &errorRecorder{}

	attempts := make(chan int32, 10)
	var n atomic.Int32
	_, err := b.Subscribe(ctx, "B", func(context.Context, envelope.Envelope) error {
		attempt := n.Add(1)
		attempts <- attempt
		if attempt == 1 {
			return errBoom
		}
		return nil
	}, rec.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, envelope.NewText("retry me", "A", "B")))

	for want := int32(1); want <= 2; want++ {
		select {
		case got := <-attempts:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("attempt %d never happened", want)
		}
	}
	assert.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 10*time.Millisecond)
}
