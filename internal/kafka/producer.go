package kafka

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/quantfabric/options-engine/pkg/utils/logger"
)

// Producer wraps a topic writer.
type Producer struct {
	writer *kafkago.Writer
	log    *logger.Logger
}

// ProduceMessage writes one keyed message with optional headers
func (p *Producer) ProduceMessage(ctx context.Context, key, value []byte, headers map[string]string) error {
	msg := kafkago.Message{
		Key:   key,
		Value: value,
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Errorf("Failed to write message to %s: %v", p.writer.Topic, err)
		return err
	}
	return nil
}

// Close flushes pending batches and shuts down the writer
func (p *Producer) Close() error {
	p.log.Info("Closing Kafka producer")
	return p.writer.Close()
}
