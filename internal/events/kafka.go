// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// envelope is the wire shape of a domain event.
type envelope struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	SubjectID string         `json:"subject_id"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// KafkaPublisher implements the event port on a kafka-go writer. Events for
// the same subject share a key and therefore a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
	source string
}

func NewKafkaPublisher(brokers []string, topic, source string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaPublisher{writer: writer, logger: logger, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, subjectID string, payload map[string]any) error {
	value, err := json.Marshal(envelope{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    p.source,
		SubjectID: subjectID,
		Time:      time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(subjectID),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Error("failed to write event to kafka",
			zap.String("event_type", eventType),
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to write event to kafka: %w", err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
