// Package notification delivers claim and refund events through a Redis
// stream. Events stay in the stream until trimmed, so a consumer group
// created after an event was published still receives it.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Envelope wraps every published event.
type Envelope struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	PublishedAt time.Time       `json:"published_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Stream entry fields.
const (
	fieldTopic    = "topic"
	fieldEnvelope = "envelope"
)

// streamClient is the part of *redis.Client the package uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Service appends events to one stream. maxLen caps the stream length
// approximately; zero keeps every entry.
type Service struct {
	client streamClient
	stream string
	maxLen int64
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a new notification service.
func NewService(client streamClient, stream string, maxLen int64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{client: client, stream: stream, maxLen: maxLen, log: log, now: time.Now}
}

func (s *Service) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	msg, err := json.Marshal(Envelope{
		ID:          uuid.NewString(),
		Topic:       topic,
		PublishedAt: s.now().UTC(),
		Payload:     body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: map[string]interface{}{fieldTopic: topic, fieldEnvelope: string(msg)},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	s.log.Debug("event published", zap.String("topic", topic), zap.String("entry_id", id))
	return nil
}

// Delivery is one event read by a Consumer. EntryID is what Ack takes.
type Delivery struct {
	EntryID  string
	Envelope *Envelope
}

// Consumer reads a stream as a member of a consumer group. Entries stay
// pending until acknowledged and are handed out again to the same consumer
// name after a restart.
type Consumer struct {
	client  streamClient
	stream  string
	group   string
	name    string
	block   time.Duration
	backlog bool
	log     *zap.Logger
}

// NewConsumer joins group, creating it at the start of the stream if needed
// so that events published before the group existed are delivered too.
func NewConsumer(ctx context.Context, client streamClient, stream, group, name string, block time.Duration, log *zap.Logger) (*Consumer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}
	return &Consumer{
		client:  client,
		stream:  stream,
		group:   group,
		name:    name,
		block:   block,
		backlog: true,
		log:     log,
	}, nil
}

// Read returns up to count events. Entries delivered earlier but never
// acknowledged come first. An empty result means nothing arrived within the
// block timeout.
func (c *Consumer) Read(ctx context.Context, count int64) ([]Delivery, error) {
	start := ">"
	if c.backlog {
		start = "0"
	}
	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, start},
		Count:    count,
	}
	if !c.backlog {
		args.Block = c.block
	}
	streams, err := c.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.stream, err)
	}

	var out []Delivery
	for _, st := range streams {
		for _, msg := range st.Messages {
			env, err := decode(msg)
			if err != nil {
				c.log.Error("skipping unreadable event", zap.String("entry_id", msg.ID), zap.Error(err))
				if err := c.Ack(ctx, msg.ID); err != nil {
					return out, err
				}
				continue
			}
			out = append(out, Delivery{EntryID: msg.ID, Envelope: env})
		}
	}
	if c.backlog && len(out) == 0 {
		c.backlog = false
		return c.Read(ctx, count)
	}
	return out, nil
}

func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("failed to ack %s: %w", c.stream, err)
	}
	return nil
}

func decode(msg redis.XMessage) (*Envelope, error) {
	raw, ok := msg.Values[fieldEnvelope].(string)
	if !ok {
		return nil, fmt.Errorf("entry %s has no envelope", msg.ID)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &env, nil
}

// LogService only logs events. It is used when Redis is not configured.
type LogService struct {
	log *zap.Logger
}

func NewLogService(log *zap.Logger) *LogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogService{log: log}
}

func (s *LogService) Publish(ctx context.Context, topic string, payload interface{}) error {
	s.log.Info("event", zap.String("topic", topic), zap.Any("payload", payload))
	return nil
}
