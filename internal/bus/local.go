package bus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"busrelay/internal/config"
	"busrelay/internal/secrets"
)

// localBroker delivers in-process. Every subscription on a topic gets its own
// copy of each message; a nacked message is offered again immediately.
// Messages published to a topic nobody subscribes to are dropped, as a
// broker topic without subscriptions would.
type localBroker struct {
	ch *gochannel.GoChannel
}

func newLocalBroker(cfg config.BusConfig, logger watermill.LoggerAdapter) *localBroker {
	return &localBroker{
		ch: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.LocalBuffer,
		}, logger),
	}
}

func (l *localBroker) publisher(context.Context, secrets.Profile) (message.Publisher, error) {
	return l.ch, nil
}

// The channel is shared, so releasing a subscription is left to the
// cancellation of its Subscribe context.
func (l *localBroker) subscriber(context.Context, secrets.Profile, func(error)) (message.Subscriber, func() error, error) {
	return l.ch, func() error { return nil }, nil
}

func (l *localBroker) close() error {
	return l.ch.Close()
}
