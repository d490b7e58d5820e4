package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"busrelay/internal/config"
	"busrelay/internal/secrets"
)

// kafkaBroker maps a profile's topic to a Kafka topic and its subscription to
// a consumer group, so every subscription sees every message. The profile
// connection string is a comma separated broker list.
type kafkaBroker struct {
	cfg        config.BusConfig
	logger     watermill.LoggerAdapter
	publishers *pool[message.Publisher]
}

func newKafkaBroker(cfg config.BusConfig, logger watermill.LoggerAdapter) *kafkaBroker {
	k := &kafkaBroker{cfg: cfg, logger: logger}
	k.publishers = newPool(k.dialPublisher)
	return k
}

func splitBrokers(conn string) []string {
	var brokers []string
	for _, b := range strings.Split(conn, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (k *kafkaBroker) saramaPublisherConfig() *sarama.Config {
	c := kafka.DefaultSaramaSyncPublisherConfig()
	c.ClientID = k.cfg.ClientID
	return c
}

func (k *kafkaBroker) saramaSubscriberConfig() *sarama.Config {
	c := kafka.DefaultSaramaSubscriberConfig()
	c.ClientID = k.cfg.ClientID
	return c
}

func (k *kafkaBroker) dialPublisher(_ context.Context, conn string) (message.Publisher, error) {
	brokers := splitBrokers(conn)
	if len(brokers) == 0 {
		return nil, errors.New("kafka profile has no brokers")
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: k.saramaPublisherConfig(),
	}, k.logger)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return pub, nil
}

func (k *kafkaBroker) publisher(ctx context.Context, p secrets.Profile) (message.Publisher, error) {
	return k.publishers.get(ctx, p.ConnectionString)
}

// The watermill subscriber retries and logs its own faults.
func (k *kafkaBroker) subscriber(_ context.Context, p secrets.Profile, _ func(error)) (message.Subscriber, func() error, error) {
	brokers := splitBrokers(p.ConnectionString)
	if len(brokers) == 0 {
		return nil, nil, errors.New("kafka profile has no brokers")
	}
	if p.Subscription == "" {
		return nil, nil, fmt.Errorf("kafka profile %q has no subscription", p.Name)
	}

	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: k.saramaSubscriberConfig(),
		ConsumerGroup:         p.Subscription,
		InitializeTopicDetails: &sarama.TopicDetail{
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
		NackResendSleep:     k.cfg.NackResendSleep,
		ReconnectRetrySleep: k.cfg.ReconnectRetrySleep,
	}, k.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka subscriber: %w", err)
	}
	return sub, sub.Close, nil
}

func (k *kafkaBroker) close() error {
	return k.publishers.close()
}
