package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/rendezvous/internal/models"
)

// KafkaProducer forwards accepted position updates for downstream
// consumers (the geo store mirror, analytics).
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

// PublishPosition emits one update keyed by the owning location key so
// per-key ordering is preserved across partitions.
func (k *KafkaProducer) PublishPosition(ctx context.Context, key string, u models.PositionUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(PositionMessage{Key: key, Update: u})
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// PositionMessage is the wire envelope shared with downstream consumers.
type PositionMessage struct {
	Key    string                `json:"key"`
	Update models.PositionUpdate `json:"update"`
}
