package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"busrelay/internal/config"
	"busrelay/internal/logging"
	"busrelay/internal/secrets"
)

// Stream entry fields.
const (
	fieldUUID     = "uuid"
	fieldPayload  = "payload"
	metadataField = "md."
)

const (
	readBatch        = 10
	defaultBlock     = 2 * time.Second
	defaultClaimIdle = 30 * time.Second
)

// redisBroker maps a profile's topic to a Redis stream and its subscription
// to a consumer group on that stream. The connection string is a redis://
// URL or a bare host:port.
type redisBroker struct {
	cfg     config.BusConfig
	logger  logging.Logger
	clients *pool[*redis.Client]
}

func newRedisBroker(cfg config.BusConfig, logger logging.Logger) *redisBroker {
	if cfg.RedisBlock <= 0 {
		cfg.RedisBlock = defaultBlock
	}
	if cfg.RedisClaimIdle <= 0 {
		cfg.RedisClaimIdle = defaultClaimIdle
	}
	return &redisBroker{
		cfg:     cfg,
		logger:  logger.With("component", "redis_stream"),
		clients: newPool(dialRedis),
	}
}

func redisOptions(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, errors.New("redis profile has no connection string")
	}
	if strings.Contains(conn, "://") {
		return redis.ParseURL(conn)
	}
	return &redis.Options{Addr: conn}, nil
}

func dialRedis(ctx context.Context, conn string) (*redis.Client, error) {
	opts, err := redisOptions(conn)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *redisBroker) publisher(ctx context.Context, p secrets.Profile) (message.Publisher, error) {
	client, err := r.clients.get(ctx, p.ConnectionString)
	if err != nil {
		return nil, err
	}
	return &streamPublisher{client: client}, nil
}

func (r *redisBroker) subscriber(ctx context.Context, p secrets.Profile, faults func(error)) (message.Subscriber, func() error, error) {
	if p.Subscription == "" {
		return nil, nil, fmt.Errorf("redis profile %q has no subscription", p.Name)
	}
	client, err := r.clients.get(ctx, p.ConnectionString)
	if err != nil {
		return nil, nil, err
	}
	sub := &streamSubscriber{
		client:          client,
		group:           p.Subscription,
		consumer:        r.cfg.ClientID + "-" + uuid.NewString()[:8],
		block:           r.cfg.RedisBlock,
		claimIdle:       r.cfg.RedisClaimIdle,
		nackResendSleep: r.cfg.NackResendSleep,
		faults:          faults,
		logger:          r.logger,
		closing:         make(chan struct{}),
	}
	return sub, sub.Close, nil
}

func (r *redisBroker) close() error {
	return r.clients.close()
}

func streamValues(msg *message.Message) map[string]any {
	values := map[string]any{
		fieldUUID:    msg.UUID,
		fieldPayload: string(msg.Payload),
	}
	for k, v := range msg.Metadata {
		values[metadataField+k] = v
	}
	return values
}

// streamMessage turns a stream entry back into a message. Entries missing a
// payload still produce a message so the receive loop can report them.
func streamMessage(xm redis.XMessage) *message.Message {
	id, _ := xm.Values[fieldUUID].(string)
	if id == "" {
		id = xm.ID
	}
	payload, _ := xm.Values[fieldPayload].(string)

	msg := message.NewMessage(id, []byte(payload))
	for k, v := range xm.Values {
		if !strings.HasPrefix(k, metadataField) {
			continue
		}
		if s, ok := v.(string); ok {
			msg.Metadata.Set(strings.TrimPrefix(k, metadataField), s)
		}
	}
	return msg
}

type streamPublisher struct {
	client *redis.Client
}

func (p *streamPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		err := p.client.XAdd(msg.Context(), &redis.XAddArgs{
			Stream: topic,
			Values: streamValues(msg),
		}).Err()
		if err != nil {
			return fmt.Errorf("xadd %s: %w", topic, err)
		}
	}
	return nil
}

// Close is a no-op; the client belongs to the broker's pool.
func (p *streamPublisher) Close() error { return nil }

type streamSubscriber struct {
	client          *redis.Client
	group           string
	consumer        string
	block           time.Duration
	claimIdle       time.Duration
	nackResendSleep time.Duration
	faults          func(error)
	logger          logging.Logger

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func (s *streamSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if err := s.client.XGroupCreateMkStream(ctx, topic, s.group, "$").Err(); err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("create group %s on %s: %w", s.group, topic, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan *message.Message)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer cancel()
		go func() {
			select {
			case <-s.closing:
				cancel()
			case <-ctx.Done():
			}
		}()
		s.consume(ctx, topic, out)
	}()
	return out, nil
}

// consume replays entries this consumer read but never acked, takes over
// entries left idle on other consumers of the group (a crashed process comes
// back under a new consumer name), then follows new entries. Idle entries are
// claimed again every claimIdle while following.
func (s *streamSubscriber) consume(ctx context.Context, topic string, out chan<- *message.Message) {
	var (
		inFlight sync.WaitGroup
		mu       sync.Mutex
		held     = make(map[string]struct{})
	)
	defer inFlight.Wait()

	// deliver skips entries this consumer is still settling; a slow handler
	// can make its own entry look idle to XAUTOCLAIM.
	deliver := func(xm redis.XMessage) bool {
		mu.Lock()
		if _, ok := held[xm.ID]; ok {
			mu.Unlock()
			return true
		}
		held[xm.ID] = struct{}{}
		mu.Unlock()

		msg := streamMessage(xm)
		msg.SetContext(ctx)
		select {
		case out <- msg:
		case <-ctx.Done():
			return false
		}
		inFlight.Add(1)
		go func(id string, msg *message.Message) {
			defer inFlight.Done()
			s.settle(ctx, topic, id, msg, out)
			mu.Lock()
			delete(held, id)
			mu.Unlock()
		}(xm.ID, msg)
		return true
	}

	start := "0"
	var lastClaim time.Time
	for ctx.Err() == nil {
		if start == ">" && time.Since(lastClaim) >= s.claimIdle {
			if !s.claim(ctx, topic, deliver) {
				return
			}
			lastClaim = time.Now()
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{topic, start},
			Count:    readBatch,
			Block:    s.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.fail("receive", topic, err)
			s.pause(ctx)
			continue
		}

		read := 0
		for _, stream := range streams {
			for _, xm := range stream.Messages {
				read++
				if start != ">" {
					start = xm.ID
				}
				if !deliver(xm) {
					return
				}
			}
		}
		if start != ">" && read == 0 {
			start = ">"
		}
	}
}

// claim moves every entry idle for at least claimIdle to this consumer and
// delivers it. It returns false once ctx is done.
func (s *streamSubscriber) claim(ctx context.Context, topic string, deliver func(redis.XMessage) bool) bool {
	cursor := "0-0"
	for {
		claimed, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   topic,
			Group:    s.group,
			Consumer: s.consumer,
			MinIdle:  s.claimIdle,
			Start:    cursor,
			Count:    readBatch,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			s.fail("claim", topic, err)
			return true
		}
		for _, xm := range claimed {
			s.logger.Info("claimed idle entry", "stream", topic, "group", s.group, "id", xm.ID)
			if !deliver(xm) {
				return false
			}
		}
		if next == "" || next == "0-0" {
			return true
		}
		cursor = next
	}
}

func (s *streamSubscriber) fail(op, topic string, err error) {
	s.logger.Error("redis stream "+op+" failed", "stream", topic, "group", s.group, "error", err)
	if s.faults != nil {
		s.faults(&TransportError{Op: op, Topic: topic, Err: err})
	}
}

func (s *streamSubscriber) pause(ctx context.Context) {
	select {
	case <-time.After(s.block):
	case <-ctx.Done():
	}
}

// settle waits for the receive loop's verdict on msg. An ack is confirmed
// with XACK; a nack re-offers the entry after nackResendSleep. Entries that
// are never settled stay pending in the group until a consumer claims them
// after claimIdle.
func (s *streamSubscriber) settle(ctx context.Context, topic, id string, msg *message.Message, out chan<- *message.Message) {
	for {
		select {
		case <-msg.Acked():
			if err := s.client.XAck(context.WithoutCancel(ctx), topic, s.group, id).Err(); err != nil {
				s.fail("ack", topic, err)
			}
			return
		case <-msg.Nacked():
			select {
			case <-time.After(s.nackResendSleep):
			case <-ctx.Done():
				return
			}
			msg = msg.Copy()
			msg.SetContext(ctx)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		case <-s.closing:
			return
		}
	}
}

func (s *streamSubscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.wg.Wait()
	return nil
}
