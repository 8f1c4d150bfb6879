package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to one topic, keyed by Event.Key and tagged
// with the routing key in a header.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(broker, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.RoutingKey(), err)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(ev.Key()),
		Value:   body,
		Headers: []kafka.Header{{Key: "routing_key", Value: []byte(ev.RoutingKey())}},
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
