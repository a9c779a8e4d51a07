package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	seenCapacity = 4096
	seenTTL      = 5 * time.Minute
)

// Fanout names the cross-node channels of one topic. Empty fields disable the
// corresponding transport. When both are set every message travels on both
// and peers handle it once.
type Fanout struct {
	Redis        *redis.Client
	RedisChannel string
	NATS         *nats.Conn
	NATSSubject  string
}

// FanoutChannels derives the redis channel and NATS subject of a topic from a prefix.
func FanoutChannels(prefix, topic string) (string, string) {
	prefix = strings.TrimSpace(prefix)
	topic = strings.TrimSpace(topic)
	if prefix == "" || topic == "" {
		return "", ""
	}
	return prefix + ":" + topic, strings.ReplaceAll(prefix, ":", ".") + "." + topic
}

func (f Fanout) redisEnabled() bool {
	return f.Redis != nil && f.RedisChannel != ""
}

func (f Fanout) natsEnabled() bool {
	return f.NATS != nil && f.NATSSubject != ""
}

type fanoutEnvelope struct {
	ID     string          `json:"id"`
	Origin string          `json:"origin"`
	SentAt time.Time       `json:"sentAt"`
	Body   json.RawMessage `json:"body"`
}

// broadcaster relays the messages of one topic between nodes. Messages from
// the local node are dropped and each message id is handled once per node.
type broadcaster struct {
	fanout Fanout
	nodeID string
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string

	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

func newBroadcaster(fanout Fanout, logger zerolog.Logger) *broadcaster {
	return &broadcaster{
		fanout: fanout,
		nodeID: uuid.NewString(),
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
		seen:   expirable.NewLRU[string, struct{}](seenCapacity, nil, seenTTL),
	}
}

func (b *broadcaster) enabled() bool {
	return b.fanout.redisEnabled() || b.fanout.natsEnabled()
}

func (b *broadcaster) send(ctx context.Context, body interface{}) error {
	if !b.enabled() {
		return nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fanoutEnvelope{
		ID:     b.newID(),
		Origin: b.nodeID,
		SentAt: b.now().UTC(),
		Body:   raw,
	})
	if err != nil {
		return err
	}

	var errs []error
	if b.fanout.redisEnabled() {
		if err := b.fanout.Redis.Publish(ctx, b.fanout.RedisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.fanout.natsEnabled() {
		if err := b.fanout.NATS.Publish(b.fanout.NATSSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// listen consumes every enabled transport until ctx is done. It returns once
// the subscriptions are registered with the brokers.
func (b *broadcaster) listen(ctx context.Context, handle func(json.RawMessage)) {
	if b.fanout.redisEnabled() {
		pubsub := b.fanout.Redis.Subscribe(ctx, b.fanout.RedisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			b.logger.Error().Err(err).Str("channel", b.fanout.RedisChannel).Msg("failed to subscribe to redis fanout channel")
			_ = pubsub.Close()
		} else {
			go b.consumeRedis(ctx, pubsub, handle)
		}
	}
	if b.fanout.natsEnabled() {
		b.consumeNATS(ctx, handle)
	}
}

func (b *broadcaster) consumeRedis(ctx context.Context, pubsub *redis.PubSub, handle func(json.RawMessage)) {
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Str("channel", b.fanout.RedisChannel).Msg("redis fanout subscription closed")
			return
		}
		if body, ok := b.accept([]byte(msg.Payload)); ok {
			handle(body)
		}
	}
}

func (b *broadcaster) consumeNATS(ctx context.Context, handle func(json.RawMessage)) {
	sub, err := b.fanout.NATS.Subscribe(b.fanout.NATSSubject, func(msg *nats.Msg) {
		if body, ok := b.accept(msg.Data); ok {
			handle(body)
		}
	})
	if err != nil {
		b.logger.Error().Err(err).Str("subject", b.fanout.NATSSubject).Msg("failed to subscribe to nats fanout subject")
		return
	}
	if err := b.fanout.NATS.Flush(); err != nil {
		b.logger.Warn().Err(err).Msg("failed to flush nats fanout subscription")
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain nats fanout subscription")
		}
	}()
}

func (b *broadcaster) accept(payload []byte) (json.RawMessage, bool) {
	var envelope fanoutEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid fanout envelope")
		return nil, false
	}
	if envelope.Origin == b.nodeID {
		return nil, false
	}
	if envelope.ID == "" {
		return envelope.Body, true
	}

	key := envelope.Origin + "/" + envelope.ID
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen.Contains(key) {
		return nil, false
	}
	b.seen.Add(key, struct{}{})
	return envelope.Body, true
}
