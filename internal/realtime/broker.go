package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/observability"
)

const defaultBufferSize = 32

// Broker fans out values to in-process subscribers of a topic and relays them to other
// nodes through Redis pub/sub and NATS. Delivery to a slow subscriber is dropped rather
// than blocking the publisher.
type Broker[T any] struct {
	name         string
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	bufferSize   int
	nodeID       string
	logger       zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[chan T]struct{}
}

type event[T any] struct {
	Source  string    `json:"source"`
	Topic   string    `json:"topic"`
	Payload T         `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// Option customises a broker.
type Option func(*options)

type options struct {
	bufferSize int
}

// WithBufferSize sets the per-subscriber channel capacity.
func WithBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// NewBroker builds a broker for one stream (e.g. "chat"). Either transport may be nil;
// with both nil the broker only serves local subscribers.
func NewBroker[T any](name string, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger, opts ...Option) *Broker[T] {
	cfg := options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":" + name
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + "." + name
	}

	return &Broker[T]{
		name:         name,
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		bufferSize:   cfg.bufferSize,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "realtime_broker").Str("stream", name).Logger(),
		subscribers:  make(map[string]map[chan T]struct{}),
	}
}

// NodeID identifies this process on the shared transports.
func (b *Broker[T]) NodeID() string {
	return b.nodeID
}

// Start consumes remote events until ctx is cancelled.
func (b *Broker[T]) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// Subscribe registers a buffered channel for topic. The returned cleanup closes it.
func (b *Broker[T]) Subscribe(topic string) (<-chan T, func()) {
	ch := make(chan T, b.bufferSize)

	b.mu.Lock()
	if _, exists := b.subscribers[topic]; !exists {
		b.subscribers[topic] = make(map[chan T]struct{})
	}
	b.subscribers[topic][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			if subscribers, ok := b.subscribers[topic]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(b.subscribers, topic)
				}
			}
			close(ch)
		})
	}

	return ch, cleanup
}

// Subscribers returns the number of local subscribers for topic.
func (b *Broker[T]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Publish delivers value to local subscribers and relays it to other nodes. Local delivery
// always happens; the returned error only reports relay failures.
func (b *Broker[T]) Publish(ctx context.Context, topic string, value T) error {
	b.deliver(topic, value)

	if (b.redis == nil || b.redisChannel == "") && (b.nats == nil || b.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(event[T]{
		Source:  b.nodeID,
		Topic:   topic,
		Payload: value,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *Broker[T]) deliver(topic string, value T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[topic] {
		select {
		case ch <- value:
		default:
			observability.RealtimeDropped().WithLabelValues(b.name).Inc()
			b.logger.Warn().Str("topic", topic).Msg("dropping realtime event for slow subscriber")
		}
	}
}

func (b *Broker[T]) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("redis subscription closed")
			return
		}
		b.handleEvent([]byte(msg.Payload))
	}
}

// consumeNATS uses a plain subscription: every node must see every event.
func (b *Broker[T]) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEvent(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain nats subscription")
		}
	}()
}

func (b *Broker[T]) handleEvent(data []byte) {
	var evt event[T]
	if err := json.Unmarshal(data, &evt); err != nil {
		b.logger.Warn().Err(err).Msg("invalid realtime event")
		return
	}

	if evt.Source == b.nodeID || evt.Topic == "" {
		return
	}

	b.deliver(evt.Topic, evt.Payload)
}
