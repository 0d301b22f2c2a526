// Package kafka publishes and consumes chat audit records.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"codehelp-go/internal/config"
	"codehelp-go/pkg/log"
	"codehelp-go/pkg/tasks"
)

// Producer writes TurnRecords to the configured topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for cfg.Brokers (comma separated) and cfg.Topic.
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	log.Infof("[Kafka] producer ready, topic '%s'", cfg.Topic)
	return &Producer{writer: w}
}

// Publish sends one record keyed by conversation id, so a conversation stays on one partition.
func (p *Producer) Publish(ctx context.Context, record tasks.TurnRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal turn record: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.ConversationID),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// RecordHandler handles one decoded audit record.
type RecordHandler func(ctx context.Context, record tasks.TurnRecord) error

// Consume reads audit records until ctx is cancelled, committing each message
// after handle returns. Undecodable messages are logged and committed.
func Consume(ctx context.Context, cfg config.KafkaConfig, groupID string, handle RecordHandler) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer r.Close()

	log.Infof("[Kafka] consumer started on topic '%s'", cfg.Topic)
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		var record tasks.TurnRecord
		if err := json.Unmarshal(m.Value, &record); err != nil {
			log.Errorf("[Kafka] cannot decode message at offset %d: %v", m.Offset, err)
		} else if err := handle(ctx, record); err != nil {
			log.Errorf("[Kafka] handler failed at offset %d: %v", m.Offset, err)
		}

		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("[Kafka] commit failed at offset %d: %v", m.Offset, err)
		}
	}
}
