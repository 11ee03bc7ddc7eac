package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger.With("component", "kafka.consumer", "topic", topic),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, kafka.Message) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}

// ConsumeTicketEvents decodes every message as a TicketEvent. Messages that
// are not valid JSON are logged and skipped.
func (c *Consumer) ConsumeTicketEvents(ctx context.Context, handle func(context.Context, TicketEvent) error) error {
	return c.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
		event, ok := DecodeTicketEvent(msg.Value, c.logger)
		if !ok {
			return nil
		}
		return handle(ctx, event)
	})
}

func DecodeTicketEvent(data []byte, logger *slog.Logger) (TicketEvent, bool) {
	var event TicketEvent
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Warn("skip undecodable event", "error", err)
		return event, false
	}
	return event, true
}
