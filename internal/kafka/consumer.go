package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// Consumer wraps a consumer-group reader.
type Consumer struct {
	reader *kafkago.Reader
	log    *logger.Logger
}

// ConsumeMessage reads the next message, waiting at most timeout. A nil
// message with a nil error means nothing arrived inside the window.
func (c *Consumer) ConsumeMessage(ctx context.Context, timeout time.Duration) (*Message, error) {
	readCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msg, err := c.reader.ReadMessage(readCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}

	return &Message{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}, nil
}

// Close shuts down the reader and leaves the consumer group
func (c *Consumer) Close() error {
	c.log.Info("Closing Kafka consumer")
	return c.reader.Close()
}
