package pubsub

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Keyed messages are partitioned by key so events for one entity stay ordered.
type Keyed interface {
	GetEventKey() string
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker required")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(messages)).Msg("Failed to publish kafka messages")
			}
		},
	}
	log.Info().Strs("brokers", brokers).Msg("Successful kafka init")
	return &KafkaPublisher{writer: writer}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, message Publishable) {
	msg := kafka.Message{
		Topic: message.GetEventTopicName(),
		Value: encodeMessage(message),
		Time:  time.Now().UTC(),
	}
	if keyed, ok := message.(Keyed); ok {
		msg.Key = []byte(keyed.GetEventKey())
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic).Msg("Failed to enqueue kafka message")
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
