// Package kafka adapts the bridge protocol onto kafka topics. Each peer link
// is a pair of topics: the local instance writes outbound messages to its
// outbound topic and consumes the peer's on the inbound side. Kafka's
// per-partition ordering gives the bridge the in-order delivery it assumes;
// deduplication stays with the bridge's replay store.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/openyield/yieldbridge/internal/bridge"
	"github.com/openyield/yieldbridge/internal/interfaces"
	"github.com/openyield/yieldbridge/internal/models"
)

// Sender writes outbound bridge messages to a topic.
type Sender struct {
	writer *kafka.Writer
}

func NewSender(brokers []string, topic string) *Sender {
	return &Sender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (s *Sender) Send(ctx context.Context, msg models.OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: data,
	})
}

func (s *Sender) Close() error {
	return s.writer.Close()
}

var _ interfaces.BridgeTransport = (*Sender)(nil)

// Handler is the inbound side of the bridge protocol.
type Handler func(ctx context.Context, msg models.OutboundMessage) error

// messageReader is the slice of kafka.Reader the consumer needs. Offsets are
// committed explicitly, never on fetch.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a peer's outbound topic and feeds each decoded message to
// the handler.
type Consumer struct {
	reader messageReader
	log    zerolog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		log: log.With().Str("component", "kafka_consumer").Str("topic", topic).Logger(),
	}
}

// Run consumes until ctx is cancelled or the reader is closed, feeding each
// decoded message to h. An offset is committed only once its message can
// never succeed again: after the handler applied it, or after a permanent
// rejection (replay, unknown origin, undecodable payload). Any other handler
// failure is transient — the replay store or the mint may be down — so Run
// returns with the offset uncommitted and kafka redelivers the message. A
// delivered message must never be dropped here: its value was already burned
// on the source instance.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch message: %w", err)
		}

		var msg models.OutboundMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.log.Error().Err(err).Int64("offset", m.Offset).Msg("undecodable bridge message dropped")
			if err := c.commit(ctx, m); err != nil {
				return err
			}
			continue
		}

		if err := h(ctx, msg); err != nil {
			if !permanentRejection(err) {
				return fmt.Errorf("apply message %s: %w", msg.ID, err)
			}
			c.log.Warn().Err(err).Str("message_id", msg.ID).Msg("bridge message rejected")
		}
		if err := c.commit(ctx, m); err != nil {
			return err
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}

// permanentRejection reports whether the bridge refused the message for a
// reason no redelivery can cure.
func permanentRejection(err error) bool {
	return errors.Is(err, bridge.ErrMessageReplay) || errors.Is(err, bridge.ErrInvalidOrigin)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
