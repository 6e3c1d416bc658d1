// Package events publishes settled rounds to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Settlement describes one settled round or balance grant.
type Settlement struct {
	UserID     uuid.UUID `json:"userId"`
	GameType   string    `json:"gameType"`
	RoundID    string    `json:"roundId,omitempty"`
	BetAmount  int64     `json:"betAmount"`
	Payout     int64     `json:"payout"`
	Net        int64     `json:"net"`
	Result     string    `json:"result"`
	Balance    int64     `json:"balance"`
	SettledAt  time.Time `json:"settledAt"`
	Multiplier float64   `json:"multiplier,omitempty"`
}

// Publisher sends settlement events.
type Publisher interface {
	PublishSettlement(ctx context.Context, e Settlement) error
	Close() error
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishSettlement(context.Context, Settlement) error { return nil }
func (Nop) Close() error                                        { return nil }

// messageWriter is the subset of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by user id, so a user's
// settlements stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewWriter returns a kafka.Writer for the topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
	}
}

// NewKafkaPublisher wraps a writer.
func NewKafkaPublisher(w *kafka.Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) PublishSettlement(ctx context.Context, e Settlement) error {
	if e.SettledAt.IsZero() {
		e.SettledAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode settlement event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.UserID.String()),
		Value: b,
		Time:  e.SettledAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish settlement to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Async publishes in the background so a slow broker never delays a
// settled response. Failures are logged.
type Async struct {
	next    Publisher
	timeout time.Duration
}

// NewAsync wraps next.
func NewAsync(next Publisher, timeout time.Duration) *Async {
	return &Async{next: next, timeout: timeout}
}

func (a *Async) PublishSettlement(_ context.Context, e Settlement) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.PublishSettlement(ctx, e); err != nil {
			log.Warn().Err(err).
				Str("user_id", e.UserID.String()).
				Str("game", e.GameType).
				Msg("Failed to publish settlement event")
		}
	}()
	return nil
}

func (a *Async) Close() error {
	return a.next.Close()
}
